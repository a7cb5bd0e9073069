// Package knowledge provides the farmer forum knowledge base: entry storage,
// relevance ranking, and fallback question creation.
package knowledge

import (
	"errors"
	"time"
)

// Common errors for knowledge entry operations.
var (
	ErrEntryNotFound  = errors.New("knowledge entry not found")
	ErrEmptyQuestion  = errors.New("question text is required")
	ErrEmptyCommunity = errors.New("community is required")
)

// Placeholder values for fallback-created entries that have not yet
// received an expert response.
const (
	PlaceholderAnswer     = "awaiting expert response"
	PlaceholderExpertName = "AgriNet"
	PlaceholderExpertRole = "system"
)

// Entry represents a stored question-answer pair with topic metadata
// and engagement counters.
type Entry struct {
	ID string `json:"id"`

	// Question is the farmer's question text.
	Question string `json:"question"`

	// Keywords holds comma-separated normalized tokens describing the
	// question's topic. May be empty.
	Keywords string `json:"highlighted_keywords"`

	// Community is the coarse topic tag grouping entries
	// (e.g. "Soil", "Market", "Disease & Pests").
	Community string `json:"community"`

	// Answer is the expert response, or PlaceholderAnswer for
	// fallback-created entries until an expert responds.
	Answer     string `json:"answer"`
	ExpertName string `json:"expert_name"`
	ExpertRole string `json:"expert_role"`

	// Upvotes is a net sentiment counter, not a non-negative tally.
	// Unmatched downvotes may drive it below zero and that is kept as-is.
	Upvotes    int `json:"upvotes"`
	ReplyCount int `json:"reply_count"`

	// CreatedAt is set once at creation and used as the tie-break key
	// in ranking. Never updated.
	CreatedAt time.Time `json:"created_at"`
}

// SubmitterID is an opaque identity passed through for attribution when a
// fallback question is created. The engine never interprets it.
type SubmitterID string
