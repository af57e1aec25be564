package fixtures

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wms-platform/reconciliation-service/internal/application"
	apperrors "github.com/wms-platform/reconciliation-service/pkg/errors"
)

// File is a YAML fixture of assignments and the ledger history to replay on them
type File struct {
	Assignments []Assignment `yaml:"assignments"`
}

// Assignment is one assignment to open
type Assignment struct {
	AssignmentID string         `yaml:"assignmentId"`
	OrderID      string         `yaml:"orderId"`
	BatchID      string         `yaml:"batchId"`
	ProductID    string         `yaml:"productId"`
	Sizes        map[string]int `yaml:"sizes"`
	Steps        []Step         `yaml:"steps"`
	Close        bool           `yaml:"close"`
}

// Step is either a pick or a QC verdict, applied in file order
type Step struct {
	Pick *PickStep `yaml:"pick,omitempty"`
	QC   *QCStep   `yaml:"qc,omitempty"`
}

// PickStep records picked units
type PickStep struct {
	Size     string `yaml:"size"`
	Quantity int    `yaml:"quantity"`
	Picker   string `yaml:"picker"`
}

// QCStep records a QC verdict
type QCStep struct {
	Size      string `yaml:"size"`
	Approved  int    `yaml:"approved"`
	Rejected  int    `yaml:"rejected"`
	Remarks   string `yaml:"remarks"`
	Inspector string `yaml:"inspector"`
}

// Load reads and validates a fixture file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates fixture bytes. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	seen := make(map[string]bool, len(f.Assignments))
	for i, a := range f.Assignments {
		if a.AssignmentID == "" {
			return nil, fmt.Errorf("assignment %d: assignmentId is required", i)
		}
		if seen[a.AssignmentID] {
			return nil, fmt.Errorf("assignment %s listed more than once", a.AssignmentID)
		}
		seen[a.AssignmentID] = true

		for j, step := range a.Steps {
			if (step.Pick == nil) == (step.QC == nil) {
				return nil, fmt.Errorf("assignment %s step %d: exactly one of pick or qc is required", a.AssignmentID, j)
			}
		}
	}
	return &f, nil
}

// Service is what seeding drives
type Service interface {
	OpenAssignment(ctx context.Context, cmd application.OpenAssignmentCommand) (*application.AssignmentDTO, error)
	CloseAssignment(ctx context.Context, cmd application.CloseAssignmentCommand) (*application.AssignmentDTO, error)
	SubmitPick(ctx context.Context, cmd application.SubmitPickCommand) (*application.SizeBucketDTO, error)
	SubmitQCVerdict(ctx context.Context, cmd application.SubmitQCVerdictCommand) (*application.SizeBucketDTO, error)
}

// Report summarizes a seeding run
type Report struct {
	Opened  int
	Skipped int
	Steps   int
}

// Apply opens every assignment and replays its steps. Assignments that
// already exist are skipped with their steps, so a fixture can be applied
// more than once.
func Apply(ctx context.Context, service Service, f *File) (Report, error) {
	var report Report

	for _, a := range f.Assignments {
		_, err := service.OpenAssignment(ctx, application.OpenAssignmentCommand{
			AssignmentID: a.AssignmentID,
			OrderID:      a.OrderID,
			BatchID:      a.BatchID,
			ProductID:    a.ProductID,
			Sizes:        a.Sizes,
		})
		if isConflict(err) {
			report.Skipped++
			continue
		}
		if err != nil {
			return report, fmt.Errorf("open %s: %w", a.AssignmentID, err)
		}
		report.Opened++

		for j, step := range a.Steps {
			if err := applyStep(ctx, service, a.AssignmentID, step); err != nil {
				return report, fmt.Errorf("assignment %s step %d: %w", a.AssignmentID, j, err)
			}
			report.Steps++
		}

		if a.Close {
			if _, err := service.CloseAssignment(ctx, application.CloseAssignmentCommand{AssignmentID: a.AssignmentID, Reason: "fixture"}); err != nil {
				return report, fmt.Errorf("close %s: %w", a.AssignmentID, err)
			}
		}
	}

	return report, nil
}

func applyStep(ctx context.Context, service Service, assignmentID string, step Step) error {
	if step.Pick != nil {
		_, err := service.SubmitPick(ctx, application.SubmitPickCommand{
			AssignmentID: assignmentID,
			Size:         step.Pick.Size,
			Quantity:     step.Pick.Quantity,
			Picker:       step.Pick.Picker,
		})
		return err
	}

	_, err := service.SubmitQCVerdict(ctx, application.SubmitQCVerdictCommand{
		AssignmentID: assignmentID,
		Size:         step.QC.Size,
		Approved:     step.QC.Approved,
		Rejected:     step.QC.Rejected,
		Remarks:      step.QC.Remarks,
		Inspector:    step.QC.Inspector,
	})
	return err
}

func isConflict(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && appErr.Code == apperrors.CodeConflict
}
