package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agrinet-collective/agrinet/internal/tracing"
)

// PostgresEntryRepository implements EntryRepository using PostgreSQL.
// Counter mutations are expressed as single UPDATE ... RETURNING statements
// so the read-modify-write is atomic inside the database and concurrent
// adjustments to the same row serialize on the row lock.
type PostgresEntryRepository struct {
	db *sql.DB
}

// NewPostgresEntryRepository creates a new PostgresEntryRepository.
func NewPostgresEntryRepository(db *sql.DB) *PostgresEntryRepository {
	return &PostgresEntryRepository{db: db}
}

const entryColumns = `id, question, highlighted_keywords, community, answer, expert_name, expert_role, upvotes, reply_count, created_at`

// Create inserts a new entry as a single atomic insert.
func (r *PostgresEntryRepository) Create(ctx context.Context, entry *Entry) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "knowledge_entries", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO knowledge_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err = r.db.QueryRowContext(ctx, query,
		entry.ID,
		entry.Question,
		entry.Keywords,
		entry.Community,
		entry.Answer,
		entry.ExpertName,
		entry.ExpertRole,
		entry.Upvotes,
		entry.ReplyCount,
		entry.CreatedAt,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create knowledge entry: %w", err)
	}

	return nil
}

// GetByID retrieves an entry by its ID.
func (r *PostgresEntryRepository) GetByID(ctx context.Context, id string) (_ *Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "knowledge_entries", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + entryColumns + ` FROM knowledge_entries WHERE id = $1`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get knowledge entry: %w", err)
	}

	return entry, nil
}

// ListAll retrieves every entry ordered by created_at DESC.
func (r *PostgresEntryRepository) ListAll(ctx context.Context) (_ []*Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "knowledge_entries", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT ` + entryColumns + `
		FROM knowledge_entries
		ORDER BY created_at DESC, id ASC
	`
	return r.queryEntries(ctx, query)
}

// ListByCommunity retrieves entries with an exact community tag match,
// ordered by created_at DESC.
func (r *PostgresEntryRepository) ListByCommunity(ctx context.Context, community string) (_ []*Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "knowledge_entries", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT ` + entryColumns + `
		FROM knowledge_entries
		WHERE community = $1
		ORDER BY created_at DESC, id ASC
	`
	return r.queryEntries(ctx, query, community)
}

// AdjustUpvotes applies delta to the upvote counter as a single atomic
// UPDATE and returns the new value.
func (r *PostgresEntryRepository) AdjustUpvotes(ctx context.Context, id string, delta int) (_ int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "knowledge_entries", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	query := `
		UPDATE knowledge_entries
		SET upvotes = upvotes + $2
		WHERE id = $1
		RETURNING upvotes
	`

	var upvotes int
	err = r.db.QueryRowContext(ctx, query, id, delta).Scan(&upvotes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrEntryNotFound
		}
		return 0, fmt.Errorf("failed to adjust upvotes: %w", err)
	}

	return upvotes, nil
}

// IncrementReplies adds one to the reply counter as a single atomic UPDATE
// and returns the new value.
func (r *PostgresEntryRepository) IncrementReplies(ctx context.Context, id string) (_ int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "knowledge_entries", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	query := `
		UPDATE knowledge_entries
		SET reply_count = reply_count + 1
		WHERE id = $1
		RETURNING reply_count
	`

	var replies int
	err = r.db.QueryRowContext(ctx, query, id).Scan(&replies)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrEntryNotFound
		}
		return 0, fmt.Errorf("failed to increment replies: %w", err)
	}

	return replies, nil
}

// queryEntries runs a multi-row entry query and scans the results.
func (r *PostgresEntryRepository) queryEntries(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge entries: %w", err)
	}

	return entries, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	err := row.Scan(
		&entry.ID,
		&entry.Question,
		&entry.Keywords,
		&entry.Community,
		&entry.Answer,
		&entry.ExpertName,
		&entry.ExpertRole,
		&entry.Upvotes,
		&entry.ReplyCount,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
