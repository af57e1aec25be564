package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New(DefaultConfig("reconciliation-service"))
	b := New(DefaultConfig("reconciliation-service"))
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestRecordLedgerMutation(t *testing.T) {
	m := New(DefaultConfig("reconciliation-service"))

	m.RecordLedgerMutation("pick", "committed", 5*time.Millisecond)
	m.RecordLedgerMutation("pick", "committed", 5*time.Millisecond)
	m.RecordLedgerMutation("qc_review", "rejected", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerMutations.WithLabelValues("reconciliation-service", "pick", "committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerMutations.WithLabelValues("reconciliation-service", "qc_review", "rejected")))
}

func TestRecordPickAndVerdict(t *testing.T) {
	m := New(DefaultConfig("svc"))

	m.RecordPick(5, 0)
	m.RecordPick(3, 2)
	m.RecordQCVerdict(15, 5)

	assert.Equal(t, 8.0, testutil.ToFloat64(m.UnitsPicked.WithLabelValues("svc", "fresh")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UnitsPicked.WithLabelValues("svc", "replacement")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.UnitsReviewed.WithLabelValues("svc", "approved")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.UnitsReviewed.WithLabelValues("svc", "rejected")))
}

func TestHandler_ExposesLedgerMetrics(t *testing.T) {
	m := New(DefaultConfig("svc"))
	m.RecordInvariantViolation("approved_within_picked")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wms_reconciliation_invariant_violations_total")
}
