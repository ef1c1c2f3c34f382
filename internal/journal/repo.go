package journal

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const entryColumns = `id, kind, document_number, name, message, occurred_at, repeats, last_seen_at, created_at`

// Repository persists journal entries in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Kind, &e.DocumentNumber, &e.Name, &e.Message, &e.OccurredAt, &e.Repeats, &e.LastSeenAt, &e.CreatedAt)
	return e, err
}

// RecentRecognition returns the latest recognition of document since the
// given time, or nil.
func (r *Repository) RecentRecognition(ctx context.Context, document string, since time.Time) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM kiosk_events
		WHERE document_number = $1
		  AND kind IN ('recognized', 'already_registered')
		  AND occurred_at >= $2
		ORDER BY occurred_at DESC
		LIMIT 1
	`, document, since)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// Insert writes a new entry.
func (r *Repository) Insert(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if e.LastSeenAt.IsZero() {
		e.LastSeenAt = e.OccurredAt
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO kiosk_events (id, kind, document_number, name, message, occurred_at, repeats, last_seen_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, e.ID, e.Kind, e.DocumentNumber, e.Name, e.Message, e.OccurredAt, e.Repeats, e.LastSeenAt)
	if err := row.Scan(&e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Touch counts one more repeat of an entry.
func (r *Repository) Touch(ctx context.Context, id string, seenAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE kiosk_events
		SET repeats = repeats + 1, last_seen_at = GREATEST(last_seen_at, $2)
		WHERE id = $1
	`, id, seenAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns entries newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Entry, error) {
	f = f.normalized()
	query := `SELECT ` + entryColumns + ` FROM kiosk_events`
	args := []any{}
	clauses := []string{}
	if f.DocumentNumber != "" {
		args = append(args, f.DocumentNumber)
		clauses = append(clauses, "document_number = $"+strconv.Itoa(len(args)))
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		clauses = append(clauses, "kind = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY occurred_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
