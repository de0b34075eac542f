package activitylog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// PostgresRepository implements Repository using PostgreSQL.
// Coordinates are stored as a JSONB [longitude, latitude] array.
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

const logColumns = `id, timestamp, location, activity_category, activity_type, equipment,
	personnel, material, measurement, status, notes, media, reference_id, coordinates, transcription_id`

// scanLog scans a single row into an ActivityLog.
func scanLog(scan func(dest ...any) error) (*ActivityLog, error) {
	var (
		log             ActivityLog
		media           sql.NullString
		coordinates     []byte
		transcriptionID sql.NullString
	)
	err := scan(
		&log.ID, &log.Timestamp, &log.Location, &log.ActivityCategory, &log.ActivityType,
		&log.Equipment, &log.Personnel, &log.Material, &log.Measurement, &log.Status,
		&log.Notes, &media, &log.ReferenceID, &coordinates, &transcriptionID,
	)
	if err != nil {
		return nil, err
	}
	if media.Valid {
		log.Media = &media.String
	}
	if len(coordinates) > 0 {
		var coords Coordinates
		if err := json.Unmarshal(coordinates, &coords); err != nil {
			return nil, fmt.Errorf("failed to decode coordinates: %w", err)
		}
		log.Coordinates = &coords
	}
	if transcriptionID.Valid {
		log.TranscriptionID = &transcriptionID.String
	}
	return &log, nil
}

// encodeCoordinates marshals coordinates for the JSONB column, returning nil
// for absent coordinates so the column stays NULL.
func encodeCoordinates(c *Coordinates) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// List returns all logs ordered by timestamp descending.
func (r *PostgresRepository) List(ctx context.Context) ([]ActivityLog, error) {
	query := `SELECT ` + logColumns + ` FROM activity_logs ORDER BY timestamp DESC, created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	defer rows.Close()

	var logs []ActivityLog
	for rows.Next() {
		log, err := scanLog(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		logs = append(logs, *log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity logs: %w", err)
	}
	return logs, nil
}

// GetByID retrieves a log by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*ActivityLog, error) {
	query := `SELECT ` + logColumns + ` FROM activity_logs WHERE id = $1`
	log, err := scanLog(r.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, ErrLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity log: %w", err)
	}
	return log, nil
}

const insertLogQuery = `
	INSERT INTO activity_logs (id, timestamp, location, activity_category, activity_type,
		equipment, personnel, material, measurement, status, notes, media, reference_id,
		coordinates, transcription_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
`

// Insert creates a new log.
func (r *PostgresRepository) Insert(ctx context.Context, log *ActivityLog) error {
	coords, err := encodeCoordinates(log.Coordinates)
	if err != nil {
		return fmt.Errorf("failed to encode coordinates: %w", err)
	}
	_, err = r.db.ExecContext(ctx, insertLogQuery,
		log.ID, log.Timestamp, log.Location, log.ActivityCategory, log.ActivityType,
		log.Equipment, log.Personnel, log.Material, log.Measurement, log.Status,
		log.Notes, log.Media, log.ReferenceID, coords, log.TranscriptionID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}
	return nil
}

// InsertBatch creates all logs inside a single transaction.
// Either every log is stored or none are.
func (r *PostgresRepository) InsertBatch(ctx context.Context, logs []ActivityLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		r.logger.Error("failed to begin batch insert transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Always attempt rollback on function exit (no-op after successful commit)
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			r.logger.Warn("failed to rollback batch insert transaction",
				slog.String("error", err.Error()))
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertLogQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range logs {
		log := &logs[i]
		coords, err := encodeCoordinates(log.Coordinates)
		if err != nil {
			return fmt.Errorf("failed to encode coordinates: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			log.ID, log.Timestamp, log.Location, log.ActivityCategory, log.ActivityType,
			log.Equipment, log.Personnel, log.Material, log.Measurement, log.Status,
			log.Notes, log.Media, log.ReferenceID, coords, log.TranscriptionID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert activity log %s: %w", log.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("failed to commit batch insert transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info("activity logs inserted",
		slog.Int("count", len(logs)))
	return nil
}

// Update replaces an existing log.
func (r *PostgresRepository) Update(ctx context.Context, log *ActivityLog) error {
	coords, err := encodeCoordinates(log.Coordinates)
	if err != nil {
		return fmt.Errorf("failed to encode coordinates: %w", err)
	}
	query := `
		UPDATE activity_logs
		SET timestamp = $2, location = $3, activity_category = $4, activity_type = $5,
			equipment = $6, personnel = $7, material = $8, measurement = $9, status = $10,
			notes = $11, media = $12, reference_id = $13, coordinates = $14,
			transcription_id = $15, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		log.ID, log.Timestamp, log.Location, log.ActivityCategory, log.ActivityType,
		log.Equipment, log.Personnel, log.Material, log.Measurement, log.Status,
		log.Notes, log.Media, log.ReferenceID, coords, log.TranscriptionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update activity log: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrLogNotFound
	}
	return nil
}

// Delete removes a log by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete activity log: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrLogNotFound
	}
	return nil
}

// DeleteByTranscription removes all logs that reference the given transcription.
func (r *PostgresRepository) DeleteByTranscription(ctx context.Context, transcriptionID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM activity_logs WHERE transcription_id = $1`, transcriptionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete activity logs for transcription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check delete result: %w", err)
	}
	r.logger.Info("activity logs deleted for transcription",
		slog.String("transcription_id", transcriptionID),
		slog.Int64("rows_affected", rows))
	return rows, nil
}
