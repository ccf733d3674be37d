package prospect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/campaignkit/callagent/internal/domain"
)

// SQLiteStore is the SQLite-backed record store.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (or creates) the database at dbPath and initializes the
// schema.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS prospects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL,
			product TEXT NOT NULL,
			enquiry_date TIMESTAMP,
			email TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			outcome TEXT,
			sentiment TEXT,
			notes TEXT,
			last_called_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prospects_phone ON prospects(phone)`,
		`CREATE INDEX IF NOT EXISTS idx_prospects_status ON prospects(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, rec *Record) error {
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = "pending"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prospects (id, name, phone, product, enquiry_date, email, status, outcome, sentiment, notes, last_called_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Phone, rec.Product, rec.EnquiryDate, rec.Email,
		rec.Status, string(rec.Outcome), string(rec.Sentiment), rec.Notes,
		rec.LastCalledAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prospect: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*Record, error) {
	return s.findBy(ctx, "id = ?", id)
}

func (s *SQLiteStore) FindByPhone(ctx context.Context, phone string) (*Record, error) {
	return s.findBy(ctx, "phone = ?", phone)
}

func (s *SQLiteStore) findBy(ctx context.Context, where string, arg any) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, product, enquiry_date, email, status, outcome, sentiment, notes, last_called_at, created_at, updated_at
		FROM prospects WHERE `+where, arg)

	var rec Record
	var enquiry, lastCalled sql.NullTime
	var email, outcome, sentiment, notes sql.NullString
	err := row.Scan(&rec.ID, &rec.Name, &rec.Phone, &rec.Product, &enquiry,
		&email, &rec.Status, &outcome, &sentiment, &notes, &lastCalled,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("prospect %v not found", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("scan prospect: %w", err)
	}

	if enquiry.Valid {
		rec.EnquiryDate = enquiry.Time
	}
	if lastCalled.Valid {
		t := lastCalled.Time
		rec.LastCalledAt = &t
	}
	rec.Email = email.String
	rec.Outcome = domain.Outcome(outcome.String)
	rec.Sentiment = domain.Sentiment(sentiment.String)
	rec.Notes = notes.String
	return &rec, nil
}

// UpdateCallResult records the outcome of a completed call. An empty email
// in res never clears a previously stored address.
func (s *SQLiteStore) UpdateCallResult(ctx context.Context, id string, res CallResult) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE prospects
		SET status = 'called',
		    outcome = ?,
		    sentiment = ?,
		    email = CASE WHEN ? != '' THEN ? ELSE email END,
		    notes = ?,
		    last_called_at = ?,
		    updated_at = ?
		WHERE id = ?`,
		string(res.Outcome), string(res.Sentiment), res.Email, res.Email,
		res.Notes, res.CalledAt, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update call result: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("prospect %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
