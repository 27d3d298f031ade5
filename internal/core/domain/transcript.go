package domain

import "time"

// RefinementKind selects how a raw transcript is rewritten.
type RefinementKind string

const (
	RefineOrganize  RefinementKind = "organize"
	RefineFormalize RefinementKind = "formalize"
)

// ValidRefinement reports whether kind is a supported refinement.
func ValidRefinement(kind RefinementKind) bool {
	return kind == RefineOrganize || kind == RefineFormalize
}

// Transcript is the durable result of the transcription pipeline.
// RawContent is written once and never overwritten; refinements update
// RefinedContent only, so a different refinement can be re-derived later.
// Partial marks transcripts saved after a client disconnect mid-stream.
type Transcript struct {
	ID             string         `json:"id" bson:"_id,omitempty"`
	UserID         string         `json:"user_id" bson:"user_id"`
	Title          string         `json:"title" bson:"title"`
	Keywords       []string       `json:"keywords,omitempty" bson:"keywords,omitempty"`
	RawContent     string         `json:"raw_content" bson:"raw_content"`
	RefinedContent string         `json:"refined_content,omitempty" bson:"refined_content,omitempty"`
	RefinementKind RefinementKind `json:"refinement_kind,omitempty" bson:"refinement_kind,omitempty"`
	Partial        bool           `json:"partial,omitempty" bson:"partial,omitempty"`
	TokenCost      int64          `json:"token_cost" bson:"token_cost"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" bson:"updated_at"`
}
