package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/flux/internal/domain"
)

//go:embed schema.sql
var schema string

// Store handles database operations
type Store struct {
	db *sql.DB
}

var _ ThoughtStore = (*Store)(nil)

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The syncer and the CLI share one handle; sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

const thoughtColumns = "id, job_number, text, size, position_x, position_y, velocity_x, velocity_y, is_backup, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanThought(row scanner) (domain.Thought, error) {
	var t domain.Thought
	err := row.Scan(&t.ID, &t.JobNumber, &t.Text, &t.Size,
		&t.PositionX, &t.PositionY, &t.VelocityX, &t.VelocityY,
		&t.IsBackup, &t.CreatedAt)
	return t, err
}

// CreateThought inserts a thought and returns it with its new id and timestamp
func (s *Store) CreateThought(ctx context.Context, t domain.Thought) (domain.Thought, error) {
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO thoughts ("+thoughtColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.JobNumber, t.Text, t.Size,
		t.PositionX, t.PositionY, t.VelocityX, t.VelocityY,
		t.IsBackup, t.CreatedAt,
	)
	if err != nil {
		return domain.Thought{}, fmt.Errorf("insert thought: %w", err)
	}

	return t, nil
}

// ListThoughts returns all thoughts, oldest first
func (s *Store) ListThoughts(ctx context.Context) ([]domain.Thought, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+thoughtColumns+" FROM thoughts ORDER BY created_at ASC, rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("list thoughts: %w", err)
	}
	defer rows.Close()

	thoughts := []domain.Thought{}
	for rows.Next() {
		t, err := scanThought(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thought: %w", err)
		}
		thoughts = append(thoughts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list thoughts: %w", err)
	}

	return thoughts, nil
}

// UpdateThought applies the non-nil fields of p
func (s *Store) UpdateThought(ctx context.Context, id string, p domain.Patch) error {
	var sets []string
	var args []any
	if p.Size != nil {
		sets = append(sets, "size = ?")
		args = append(args, *p.Size)
	}
	if p.PositionX != nil {
		sets = append(sets, "position_x = ?")
		args = append(args, *p.PositionX)
	}
	if p.PositionY != nil {
		sets = append(sets, "position_y = ?")
		args = append(args, *p.PositionY)
	}
	if p.IsBackup != nil {
		sets = append(sets, "is_backup = ?")
		args = append(args, *p.IsBackup)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE thoughts SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update thought: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update thought: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteThought removes a thought
func (s *Store) DeleteThought(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM thoughts WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete thought: %w", err)
	}
	return nil
}

// DeleteAllThoughts removes every thought
func (s *Store) DeleteAllThoughts(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM thoughts"); err != nil {
		return fmt.Errorf("clear thoughts: %w", err)
	}
	return nil
}

// GetCounter returns the current global counter value
func (s *Store) GetCounter(ctx context.Context) (int, error) {
	var value int
	err := s.db.QueryRowContext(ctx,
		"SELECT thought_count FROM global_counter WHERE id = 1").Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("get counter: %w", err)
	}
	return value, nil
}

// SetCounter overwrites the global counter value
func (s *Store) SetCounter(ctx context.Context, value int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE global_counter SET thought_count = ?, updated_at = ? WHERE id = 1",
		value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set counter: %w", err)
	}
	return nil
}

// CompareAndSwapCounter sets the counter to new if it currently holds old
func (s *Store) CompareAndSwapCounter(ctx context.Context, old, new int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE global_counter SET thought_count = ?, updated_at = ? WHERE id = 1 AND thought_count = ?",
		new, time.Now().UTC(), old,
	)
	if err != nil {
		return false, fmt.Errorf("swap counter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap counter: %w", err)
	}
	return n == 1, nil
}
