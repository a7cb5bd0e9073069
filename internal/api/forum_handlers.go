// Package api provides HTTP handlers for the AgriNet forum API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agrinet-collective/agrinet/internal/keyword"
	"github.com/agrinet-collective/agrinet/internal/knowledge"
	"github.com/agrinet-collective/agrinet/internal/middleware"
	"github.com/agrinet-collective/agrinet/internal/validate"
)

// ForumHandlers holds dependencies for forum HTTP handlers.
type ForumHandlers struct {
	repo   knowledge.EntryRepository
	ranker *knowledge.Ranker
}

// NewForumHandlers creates a new ForumHandlers instance.
func NewForumHandlers(repo knowledge.EntryRepository, ranker *knowledge.Ranker) *ForumHandlers {
	return &ForumHandlers{
		repo:   repo,
		ranker: ranker,
	}
}

// SearchResponse represents the response for a forum search.
type SearchResponse struct {
	Results []*knowledge.Entry `json:"results"`
	Count   int                `json:"count"`
}

// CreateQuestionRequest is the body for posting a new question.
type CreateQuestionRequest struct {
	Question  string `json:"question"`
	Keywords  string `json:"keywords"`
	Community string `json:"community"`
}

// CreateQuestionResponse is returned after a question is stored.
type CreateQuestionResponse struct {
	ID     string `json:"id"`
	Answer string `json:"answer"`
}

// CounterResponse is returned by the engagement endpoints with the
// post-adjustment counter value.
type CounterResponse struct {
	ID         string `json:"id"`
	Upvotes    *int   `json:"upvotes,omitempty"`
	ReplyCount *int   `json:"reply_count,omitempty"`
}

// Search handles GET /forum/search - ranks stored entries against the
// supplied keywords.
//
// Query parameters:
//   - keywords: comma-separated topic words (optional; empty means
//     "recent entries first")
//   - community: restrict candidates to one community tag (optional)
//
// A storage failure returns an error response rather than an empty
// result list, so callers can distinguish "nothing matched" from
// "could not search".
func (h *ForumHandlers) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	query := r.URL.Query()
	tokens := keyword.Normalize(query.Get("keywords"))
	community := strings.TrimSpace(query.Get("community"))

	results, err := h.ranker.Search(r.Context(), tokens, community)
	if err != nil {
		slog.ErrorContext(r.Context(), "forum search failed", "error", err, "community", community, "keyword_count", len(tokens))
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Could not search right now")
		return
	}

	writeJSON(w, r, http.StatusOK, SearchResponse{
		Results: results,
		Count:   len(results),
	})
}

// CreateQuestion handles POST /forum/questions - stores a farmer question
// as an unanswered entry awaiting an expert response.
func (h *ForumHandlers) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req CreateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	question, err := validate.QuestionText(req.Question)
	if err != nil {
		code := ErrCodeValidation
		if errors.Is(err, validate.ErrEmpty) {
			code = ErrCodeEmptyQuestion
		}
		ctx := middleware.SetErrorCode(r.Context(), code)
		WriteError(w, ctx, http.StatusBadRequest, code, "Invalid question text: "+err.Error())
		return
	}

	community, err := validate.CommunityName(req.Community)
	if err != nil {
		code := ErrCodeValidation
		if errors.Is(err, validate.ErrEmpty) {
			code = ErrCodeEmptyCommunity
		}
		ctx := middleware.SetErrorCode(r.Context(), code)
		WriteError(w, ctx, http.StatusBadRequest, code, "Invalid community: "+err.Error())
		return
	}

	rawKeywords, err := validate.KeywordList(req.Keywords)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid keywords: "+err.Error())
		return
	}

	submitter := knowledge.SubmitterID(middleware.GetUserID(r.Context()))
	tokens := keyword.Normalize(rawKeywords)

	id, err := knowledge.CreateFallback(r.Context(), h.repo, question, tokens, community, submitter)
	if err != nil {
		switch {
		case errors.Is(err, knowledge.ErrEmptyQuestion):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeEmptyQuestion)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeEmptyQuestion, "Question text is required")
		case errors.Is(err, knowledge.ErrEmptyCommunity):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeEmptyCommunity)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeEmptyCommunity, "Community is required")
		default:
			slog.ErrorContext(r.Context(), "failed to create question", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create question")
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, CreateQuestionResponse{
		ID:     id,
		Answer: knowledge.PlaceholderAnswer,
	})
}

// ListEntries handles GET /forum/entries - lists entries newest first,
// optionally restricted to one community.
func (h *ForumHandlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	community := strings.TrimSpace(r.URL.Query().Get("community"))

	var (
		entries []*knowledge.Entry
		err     error
	)
	if community != "" {
		entries, err = h.repo.ListByCommunity(r.Context(), community)
	} else {
		entries, err = h.repo.ListAll(r.Context())
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list entries", "error", err, "community", community)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list entries")
		return
	}
	if entries == nil {
		entries = []*knowledge.Entry{}
	}

	writeJSON(w, r, http.StatusOK, SearchResponse{
		Results: entries,
		Count:   len(entries),
	})
}

// HandleEntry dispatches requests under /forum/entries/:
//
//	GET  /forum/entries/{id}          - fetch a single entry
//	POST /forum/entries/{id}/upvote   - adjust upvotes by +1
//	POST /forum/entries/{id}/downvote - adjust upvotes by -1
//	POST /forum/entries/{id}/replies  - increment the reply counter
func (h *ForumHandlers) HandleEntry(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/forum/entries/"), "/")

	switch {
	case len(pathParts) == 1 && pathParts[0] != "":
		h.getEntry(w, r, pathParts[0])
	case len(pathParts) == 2 && pathParts[0] != "":
		h.entryAction(w, r, pathParts[0], pathParts[1])
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	}
}

func (h *ForumHandlers) getEntry(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	entry, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, knowledge.ErrEntryNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Entry not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to fetch entry", "error", err, "entry_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to fetch entry")
		return
	}

	writeJSON(w, r, http.StatusOK, entry)
}

func (h *ForumHandlers) entryAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var (
		value int
		err   error
		resp  CounterResponse
	)
	switch action {
	case "upvote":
		value, err = h.repo.AdjustUpvotes(r.Context(), id, 1)
		resp = CounterResponse{ID: id, Upvotes: &value}
	case "downvote":
		value, err = h.repo.AdjustUpvotes(r.Context(), id, -1)
		resp = CounterResponse{ID: id, Upvotes: &value}
	case "replies":
		value, err = h.repo.IncrementReplies(r.Context(), id)
		resp = CounterResponse{ID: id, ReplyCount: &value}
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}

	if err != nil {
		if errors.Is(err, knowledge.ErrEntryNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Entry not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to adjust counter", "error", err, "entry_id", id, "action", action)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update entry")
		return
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
