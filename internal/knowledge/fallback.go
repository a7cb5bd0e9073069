package knowledge

import (
	"context"
	"strings"
)

// NewFallbackEntry builds an unanswered entry for a farmer question that
// no existing entry adequately answers. The answer and expert fields are
// system placeholders until an expert responds; counters start at zero.
//
// Returns ErrEmptyQuestion or ErrEmptyCommunity when the required fields
// are blank after trimming. The submitter identity is carried through for
// attribution only and is never interpreted here.
func NewFallbackEntry(question string, keywords []string, community string, submitter SubmitterID) (*Entry, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	community = strings.TrimSpace(community)
	if community == "" {
		return nil, ErrEmptyCommunity
	}

	return &Entry{
		Question:   question,
		Keywords:   strings.Join(dropBlanks(keywords), ","),
		Community:  community,
		Answer:     PlaceholderAnswer,
		ExpertName: PlaceholderExpertName,
		ExpertRole: PlaceholderExpertRole,
	}, nil
}

// CreateFallback validates, builds, and persists a fallback entry in a
// single atomic insert, returning the assigned ID. Storage failures
// propagate to the caller untouched; the entry either exists fully
// afterwards or not at all.
func CreateFallback(ctx context.Context, repo EntryRepository, question string, keywords []string, community string, submitter SubmitterID) (string, error) {
	entry, err := NewFallbackEntry(question, keywords, community, submitter)
	if err != nil {
		return "", err
	}
	if err := repo.Create(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}
