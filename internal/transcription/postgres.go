package transcription

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository using PostgreSQL.
// Listing reads from the transcription_log_counts view so logs_generated
// reflects the live child count rather than the value recorded at creation.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new transcription.
func (r *PostgresRepository) Create(ctx context.Context, t *Transcription) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO transcriptions (id, text, title, logs_generated, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.Text, t.Title, t.LogsGenerated, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transcription: %w", err)
	}
	return nil
}

// List returns all transcriptions ordered by creation time descending.
func (r *PostgresRepository) List(ctx context.Context) ([]Transcription, error) {
	query := `
		SELECT id, text, title, logs_generated, created_at
		FROM transcription_log_counts
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcriptions: %w", err)
	}
	defer rows.Close()

	var result []Transcription
	for rows.Next() {
		var (
			t     Transcription
			title sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Text, &title, &t.LogsGenerated, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transcription: %w", err)
		}
		t.Title = title.String
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcriptions: %w", err)
	}
	return result, nil
}

// GetByID retrieves a transcription by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Transcription, error) {
	query := `
		SELECT id, text, title, logs_generated, created_at
		FROM transcriptions
		WHERE id = $1
	`
	var (
		t     Transcription
		title sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Text, &title, &t.LogsGenerated, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTranscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcription: %w", err)
	}
	t.Title = title.String
	return &t, nil
}

// Delete removes a transcription by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transcriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transcription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrTranscriptionNotFound
	}
	r.logger.Info("transcription deleted",
		slog.String("transcription_id", id))
	return nil
}
