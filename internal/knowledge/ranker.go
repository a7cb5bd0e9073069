package knowledge

import (
	"context"
	"sort"
	"strings"
)

// MaxResults caps the number of entries a search returns.
const MaxResults = 10

// Ranker scores stored entries against an incoming keyword set and
// community tag. Purely a read/query component; it ranks, it does not
// gate. Deciding whether the top result is "good enough" is the
// caller's policy.
type Ranker struct {
	repo    EntryRepository
	weights *Weights
}

// NewRanker creates a Ranker backed by the given repository. A nil
// weights argument selects the default 3/2/1 configuration.
func NewRanker(repo EntryRepository, weights *Weights) *Ranker {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Ranker{
		repo:    repo,
		weights: weights,
	}
}

// Search returns the best-matching entries for the given keyword set,
// most relevant first, capped at MaxResults.
//
// Keywords are expected to already be normalized (lower-cased, trimmed);
// see the keyword package. Blank tokens are dropped. When no usable
// keywords remain the candidate set is returned ordered by created_at
// DESC instead, so "no topic words supplied" degrades to "show recent
// posts in this community".
//
// If community is non-empty, candidates are restricted to entries whose
// community tag equals it exactly. Entries without a community tag are
// never matched. An empty result is the caller's signal to create a
// fallback question; it is not an error.
func (rk *Ranker) Search(ctx context.Context, keywords []string, community string) ([]*Entry, error) {
	candidates, err := rk.candidates(ctx, community)
	if err != nil {
		return nil, err
	}

	tokens := dropBlanks(keywords)
	if len(tokens) == 0 {
		// Repository results are already created_at DESC.
		return capResults(candidates), nil
	}

	type scoredEntry struct {
		entry *Entry
		score int
	}
	scored := make([]scoredEntry, 0, len(candidates))
	for _, entry := range candidates {
		scored = append(scored, scoredEntry{
			entry: entry,
			score: scoreEntry(entry, tokens, rk.weights),
		})
	}

	// Score DESC, then created_at DESC so freshness wins on topical
	// ties, then ID ASC for a stable total order.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if !scored[i].entry.CreatedAt.Equal(scored[j].entry.CreatedAt) {
			return scored[i].entry.CreatedAt.After(scored[j].entry.CreatedAt)
		}
		return scored[i].entry.ID < scored[j].entry.ID
	})

	results := make([]*Entry, 0, len(scored))
	for _, s := range scored {
		results = append(results, s.entry)
	}
	return capResults(results), nil
}

// candidates selects the entries eligible for matching. Entries with an
// empty community tag are excluded rather than repaired.
func (rk *Ranker) candidates(ctx context.Context, community string) ([]*Entry, error) {
	if community != "" {
		return rk.repo.ListByCommunity(ctx, community)
	}

	all, err := rk.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	eligible := all[:0]
	for _, entry := range all {
		if entry.Community != "" {
			eligible = append(eligible, entry)
		}
	}
	return eligible, nil
}

// scoreEntry computes the integer relevance score of an entry for the
// given normalized tokens. The three substring tests per token are
// independent, so one token can contribute to all three buckets.
func scoreEntry(entry *Entry, tokens []string, w *Weights) int {
	keywordsLower := strings.ToLower(entry.Keywords)
	questionLower := strings.ToLower(entry.Question)
	answerLower := strings.ToLower(entry.Answer)

	score := 0
	for _, token := range tokens {
		if strings.Contains(keywordsLower, token) {
			score += w.Keyword
		}
		if strings.Contains(questionLower, token) {
			score += w.Question
		}
		if strings.Contains(answerLower, token) {
			score += w.Answer
		}
	}
	return score
}

// dropBlanks filters out tokens that are empty after trimming.
// Deduplication is deliberately not performed: repeated tokens weigh a
// topic more heavily, matching the documented scoring contract.
func dropBlanks(tokens []string) []string {
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if strings.TrimSpace(token) != "" {
			kept = append(kept, token)
		}
	}
	return kept
}

func capResults(entries []*Entry) []*Entry {
	if entries == nil {
		return []*Entry{}
	}
	if len(entries) > MaxResults {
		return entries[:MaxResults]
	}
	return entries
}
