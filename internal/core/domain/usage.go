package domain

import "time"

// UsageRecord is one immutable entry in the per-user token ledger.
// TokenDelta is signed: negative values are debits, positive values credits,
// zero records access without cost. Records are append-only; they are removed
// only when the owning user is deleted.
type UsageRecord struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	UserID     string    `json:"user_id" bson:"user_id"`
	Feature    string    `json:"feature" bson:"feature"`
	TokenDelta int64     `json:"token_delta" bson:"token_delta"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}
