package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agrinet-collective/agrinet/internal/knowledge"
)

// newForumHandlers builds handlers backed by a fresh in-memory repository.
func newForumHandlers() (*ForumHandlers, *knowledge.InMemoryEntryRepository) {
	repo := knowledge.NewInMemoryEntryRepository()
	ranker := knowledge.NewRanker(repo, nil)
	return NewForumHandlers(repo, ranker), repo
}

// seedEntry inserts an entry with an explicit creation time so ordering
// assertions are deterministic.
func seedEntry(t *testing.T, repo *knowledge.InMemoryEntryRepository, id, question, keywords, community, answer string, age time.Duration) {
	t.Helper()
	entry := &knowledge.Entry{
		ID:        id,
		Question:  question,
		Keywords:  keywords,
		Community: community,
		Answer:    answer,
		CreatedAt: time.Now().Add(-age),
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("failed to seed entry %s: %v", id, err)
	}
}

func TestSearch_RanksByRelevance(t *testing.T) {
	handlers, repo := newForumHandlers()

	seedEntry(t, repo, "e1", "How to manage wheat rust?", "wheat,rust,fungicide", "Disease & Pests", "Apply fungicide early.", 3*time.Hour)
	seedEntry(t, repo, "e2", "Best wheat varieties for clay soil", "wheat,varieties", "Disease & Pests", "Try durum.", 2*time.Hour)
	seedEntry(t, repo, "e3", "Irrigation schedule for maize", "maize,irrigation", "Disease & Pests", "Twice weekly.", 1*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/forum/search?keywords=wheat,rust&community=Disease+%26+Pests", nil)
	w := httptest.NewRecorder()

	handlers.Search(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Count != 3 {
		t.Fatalf("expected 3 results, got %d", response.Count)
	}
	// e1 matches both tokens in keywords and question; it must rank first.
	if response.Results[0].ID != "e1" {
		t.Errorf("expected e1 first, got %s", response.Results[0].ID)
	}
	// e2 matches only "wheat"; e3 matches nothing and comes last.
	if response.Results[2].ID != "e3" {
		t.Errorf("expected e3 last, got %s", response.Results[2].ID)
	}
}

func TestSearch_EmptyKeywordsReturnsRecentFirst(t *testing.T) {
	handlers, repo := newForumHandlers()

	seedEntry(t, repo, "old", "Old question", "soil", "Soil", "Answer.", 2*time.Hour)
	seedEntry(t, repo, "new", "New question", "soil", "Soil", "Answer.", 1*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/forum/search?community=Soil", nil)
	w := httptest.NewRecorder()

	handlers.Search(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Count != 2 {
		t.Fatalf("expected 2 results, got %d", response.Count)
	}
	if response.Results[0].ID != "new" {
		t.Errorf("expected newest entry first, got %s", response.Results[0].ID)
	}
}

func TestSearch_EmptyStoreReturnsEmptyList(t *testing.T) {
	handlers, _ := newForumHandlers()

	req := httptest.NewRequest(http.MethodGet, "/forum/search?keywords=wheat", nil)
	w := httptest.NewRecorder()

	handlers.Search(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Results == nil {
		t.Error("expected non-nil results array")
	}
	if response.Count != 0 {
		t.Errorf("expected 0 results, got %d", response.Count)
	}
}

// brokenEntryRepository fails every operation, standing in for a storage
// outage.
type brokenEntryRepository struct {
	err error
}

func (r *brokenEntryRepository) Create(ctx context.Context, entry *knowledge.Entry) error {
	return r.err
}

func (r *brokenEntryRepository) GetByID(ctx context.Context, id string) (*knowledge.Entry, error) {
	return nil, r.err
}

func (r *brokenEntryRepository) ListAll(ctx context.Context) ([]*knowledge.Entry, error) {
	return nil, r.err
}

func (r *brokenEntryRepository) ListByCommunity(ctx context.Context, community string) ([]*knowledge.Entry, error) {
	return nil, r.err
}

func (r *brokenEntryRepository) AdjustUpvotes(ctx context.Context, id string, delta int) (int, error) {
	return 0, r.err
}

func (r *brokenEntryRepository) IncrementReplies(ctx context.Context, id string) (int, error) {
	return 0, r.err
}

func TestSearch_StorageFailureReturnsError(t *testing.T) {
	repo := &brokenEntryRepository{err: errors.New("connection refused")}
	handlers := NewForumHandlers(repo, knowledge.NewRanker(repo, nil))

	req := httptest.NewRequest(http.MethodGet, "/forum/search?keywords=wheat", nil)
	w := httptest.NewRecorder()

	handlers.Search(w, req)

	// A storage failure must present as an error, never as an empty
	// result list.
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d: %s", w.Code, w.Body.String())
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Error.Code != ErrCodeInternal {
		t.Errorf("expected error code %q, got %q", ErrCodeInternal, errResp.Error.Code)
	}
	if errResp.Error.Message == "" {
		t.Error("expected a user-facing error message")
	}
}

func TestSearch_MethodNotAllowed(t *testing.T) {
	handlers, _ := newForumHandlers()

	req := httptest.NewRequest(http.MethodPost, "/forum/search", nil)
	w := httptest.NewRecorder()

	handlers.Search(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestCreateQuestion_Success(t *testing.T) {
	handlers, repo := newForumHandlers()

	body := `{"question":"Why are my tomato leaves curling?","keywords":"Tomato, Leaves ,curl","community":"Disease & Pests"}`
	req := httptest.NewRequest(http.MethodPost, "/forum/questions", strings.NewReader(body))
	w := httptest.NewRecorder()

	handlers.CreateQuestion(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var response CreateQuestionResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ID == "" {
		t.Fatal("expected a non-empty entry ID")
	}
	if response.Answer != knowledge.PlaceholderAnswer {
		t.Errorf("expected placeholder answer, got %q", response.Answer)
	}

	stored, err := repo.GetByID(context.Background(), response.ID)
	if err != nil {
		t.Fatalf("failed to fetch stored entry: %v", err)
	}
	if stored.Keywords != "tomato,leaves,curl" {
		t.Errorf("expected normalized keywords, got %q", stored.Keywords)
	}
	if stored.ExpertRole != knowledge.PlaceholderExpertRole {
		t.Errorf("expected system expert role, got %q", stored.ExpertRole)
	}
}

func TestCreateQuestion_StoresQuestionVerbatim(t *testing.T) {
	handlers, repo := newForumHandlers()

	question := "Which fertilizer for peas & beans?"
	body := `{"question":"Which fertilizer for peas & beans?","keywords":"peas & beans","community":"Vegetables"}`
	req := httptest.NewRequest(http.MethodPost, "/forum/questions", strings.NewReader(body))
	w := httptest.NewRecorder()

	handlers.CreateQuestion(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var response CreateQuestionResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	// Round-trip: the stored question must be byte-for-byte what the
	// farmer typed, with no entity escapes.
	stored, err := repo.GetByID(context.Background(), response.ID)
	if err != nil {
		t.Fatalf("failed to fetch stored entry: %v", err)
	}
	if stored.Question != question {
		t.Errorf("question mutated in storage: got %q, want %q", stored.Question, question)
	}

	entries, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Question == question {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ListAll to contain the submitted question verbatim")
	}

	// The raw keyword token can now match the question field.
	searchReq := httptest.NewRequest(http.MethodGet, "/forum/search?keywords=peas+%26+beans&community=Vegetables", nil)
	searchW := httptest.NewRecorder()
	handlers.Search(searchW, searchReq)
	if searchW.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", searchW.Code, searchW.Body.String())
	}
	var searchResp SearchResponse
	if err := json.NewDecoder(searchW.Body).Decode(&searchResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if searchResp.Count != 1 {
		t.Fatalf("expected the ampersand keyword to match the stored question, got %d results", searchResp.Count)
	}
}

func TestCreateQuestion_Validation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "empty question",
			body:     `{"question":"   ","keywords":"wheat","community":"Soil"}`,
			wantCode: ErrCodeEmptyQuestion,
		},
		{
			name:     "empty community",
			body:     `{"question":"How deep to plant?","keywords":"wheat","community":""}`,
			wantCode: ErrCodeEmptyCommunity,
		},
		{
			name:     "invalid JSON",
			body:     `{not json`,
			wantCode: ErrCodeBadRequest,
		},
		{
			name:     "question too long",
			body:     fmt.Sprintf(`{"question":%q,"community":"Soil"}`, strings.Repeat("a", 2001)),
			wantCode: ErrCodeValidation,
		},
		{
			name:     "community with invalid characters",
			body:     `{"question":"How deep to plant?","community":"Soil<script>"}`,
			wantCode: ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers, _ := newForumHandlers()

			req := httptest.NewRequest(http.MethodPost, "/forum/questions", bytes.NewReader([]byte(tt.body)))
			w := httptest.NewRecorder()

			handlers.CreateQuestion(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
			}

			var errResp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if errResp.Error.Code != tt.wantCode {
				t.Errorf("expected error code %q, got %q", tt.wantCode, errResp.Error.Code)
			}
		})
	}
}

func TestEntryActions_Counters(t *testing.T) {
	handlers, repo := newForumHandlers()
	seedEntry(t, repo, "e1", "Q", "k", "Soil", "A", time.Hour)

	t.Run("upvote", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/forum/entries/e1/upvote", nil)
		w := httptest.NewRecorder()

		handlers.HandleEntry(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp CounterResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Upvotes == nil || *resp.Upvotes != 1 {
			t.Errorf("expected upvotes 1, got %v", resp.Upvotes)
		}
	})

	t.Run("downvote below zero", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodPost, "/forum/entries/e1/downvote", nil)
			w := httptest.NewRecorder()
			handlers.HandleEntry(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
			}
		}

		stored, err := repo.GetByID(context.Background(), "e1")
		if err != nil {
			t.Fatalf("failed to fetch entry: %v", err)
		}
		if stored.Upvotes != -1 {
			t.Errorf("expected upvotes -1, got %d", stored.Upvotes)
		}
	})

	t.Run("replies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/forum/entries/e1/replies", nil)
		w := httptest.NewRecorder()

		handlers.HandleEntry(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp CounterResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.ReplyCount == nil || *resp.ReplyCount != 1 {
			t.Errorf("expected reply_count 1, got %v", resp.ReplyCount)
		}
	})
}

func TestEntryActions_NotFound(t *testing.T) {
	handlers, _ := newForumHandlers()

	for _, action := range []string{"upvote", "downvote", "replies"} {
		t.Run(action, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/forum/entries/missing/"+action, nil)
			w := httptest.NewRecorder()

			handlers.HandleEntry(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", w.Code)
			}
		})
	}
}

func TestEntryActions_UnknownAction(t *testing.T) {
	handlers, repo := newForumHandlers()
	seedEntry(t, repo, "e1", "Q", "k", "Soil", "A", time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/forum/entries/e1/promote", nil)
	w := httptest.NewRecorder()

	handlers.HandleEntry(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestEntryActions_MethodNotAllowed(t *testing.T) {
	handlers, repo := newForumHandlers()
	seedEntry(t, repo, "e1", "Q", "k", "Soil", "A", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/forum/entries/e1/upvote", nil)
	w := httptest.NewRecorder()

	handlers.HandleEntry(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestGetEntry(t *testing.T) {
	handlers, repo := newForumHandlers()
	seedEntry(t, repo, "e1", "How often to water seedlings?", "seedlings,water", "Soil", "Daily.", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/forum/entries/e1", nil)
	w := httptest.NewRecorder()

	handlers.HandleEntry(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var entry knowledge.Entry
	if err := json.NewDecoder(w.Body).Decode(&entry); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if entry.Question != "How often to water seedlings?" {
		t.Errorf("unexpected question: %q", entry.Question)
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	handlers, _ := newForumHandlers()

	req := httptest.NewRequest(http.MethodGet, "/forum/entries/missing", nil)
	w := httptest.NewRecorder()

	handlers.HandleEntry(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestListEntries_CommunityFilter(t *testing.T) {
	handlers, repo := newForumHandlers()

	seedEntry(t, repo, "s1", "Soil question", "soil", "Soil", "A", 2*time.Hour)
	seedEntry(t, repo, "m1", "Market question", "price", "Market", "A", 1*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/forum/entries?community=Soil", nil)
	w := httptest.NewRecorder()

	handlers.ListEntries(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Count != 1 {
		t.Fatalf("expected 1 result, got %d", response.Count)
	}
	if response.Results[0].ID != "s1" {
		t.Errorf("expected s1, got %s", response.Results[0].ID)
	}
}

func TestListEntries_All(t *testing.T) {
	handlers, repo := newForumHandlers()

	seedEntry(t, repo, "s1", "Soil question", "soil", "Soil", "A", 2*time.Hour)
	seedEntry(t, repo, "m1", "Market question", "price", "Market", "A", 1*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/forum/entries", nil)
	w := httptest.NewRecorder()

	handlers.ListEntries(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Count != 2 {
		t.Fatalf("expected 2 results, got %d", response.Count)
	}
	// Newest first.
	if response.Results[0].ID != "m1" {
		t.Errorf("expected m1 first, got %s", response.Results[0].ID)
	}
}
