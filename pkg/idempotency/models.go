package idempotency

import "time"

// IdempotencyKey is a stored Idempotency-Key together with the request
// fingerprint and the response that was sent for it
type IdempotencyKey struct {
	ID                 string `bson:"_id" json:"id"` // serviceId:key
	Key                string `bson:"key" json:"key"`
	ServiceID          string `bson:"serviceId" json:"serviceId"`
	RequestPath        string `bson:"requestPath" json:"requestPath"`
	RequestMethod      string `bson:"requestMethod" json:"requestMethod"`
	RequestFingerprint string `bson:"requestFingerprint" json:"requestFingerprint"`

	LockedAt *time.Time `bson:"lockedAt,omitempty" json:"lockedAt,omitempty"`

	ResponseCode    int               `bson:"responseCode,omitempty" json:"responseCode,omitempty"`
	ResponseBody    []byte            `bson:"responseBody,omitempty" json:"responseBody,omitempty"`
	ResponseHeaders map[string]string `bson:"responseHeaders,omitempty" json:"responseHeaders,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	ExpiresAt   time.Time  `bson:"expiresAt" json:"expiresAt"`
}

// KeyID builds the storage identifier for a key scoped to a service
func KeyID(serviceID, key string) string {
	return serviceID + ":" + key
}

// IsCompleted returns true if the request has been completed
func (ik *IdempotencyKey) IsCompleted() bool {
	return ik.CompletedAt != nil
}

// IsLocked returns true if the request is currently being processed
func (ik *IdempotencyKey) IsLocked() bool {
	return ik.LockedAt != nil && ik.CompletedAt == nil
}
