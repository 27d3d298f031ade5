package domain

import "time"

// ArtifactKind classifies the durable result of a completed operation.
type ArtifactKind string

const (
	ArtifactInfographic ArtifactKind = "infographic"
	ArtifactImage       ArtifactKind = "image"
	ArtifactChatMessage ArtifactKind = "chat_message"
)

// SearchResult is one retrieval citation attached to a researched artifact.
type SearchResult struct {
	Title string `json:"title" bson:"title"`
	URL   string `json:"url" bson:"url"`
}

// Artifact is the persisted output of an operation. ImageRef is an opaque
// reference into the binary store; the binary payload itself is not kept here.
type Artifact struct {
	ID            string         `json:"id" bson:"_id,omitempty"`
	UserID        string         `json:"user_id" bson:"user_id"`
	Kind          ArtifactKind   `json:"kind" bson:"kind"`
	Title         string         `json:"title,omitempty" bson:"title,omitempty"`
	Content       string         `json:"content,omitempty" bson:"content,omitempty"`
	Prompt        string         `json:"prompt,omitempty" bson:"prompt,omitempty"`
	Facts         []string       `json:"facts,omitempty" bson:"facts,omitempty"`
	SearchResults []SearchResult `json:"search_results,omitempty" bson:"search_results,omitempty"`
	ImageRef      string         `json:"image_ref,omitempty" bson:"image_ref,omitempty"`
	TokenCost     int64          `json:"token_cost" bson:"token_cost"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
}
