package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/dmitrijs2005/seqsubmit/internal/dbx"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const settingsLockKey int64 = 7

func (r *PostgresRepository) Lock(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, settingsLockKey); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Latest returns the most recently created row, or common.ErrorNotFound
// when the log is empty.
func (r *PostgresRepository) Latest(ctx context.Context) (*models.Settings, error) {
	query :=
		`SELECT id, created_at, created_by, plate_n_rows, plate_n_cols, running_options, last_submission_day
		 FROM settings
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`

	s := &models.Settings{}
	var options []byte
	err := r.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.CreatedAt, &s.CreatedBy,
		&s.PlateNRows, &s.PlateNCols, &options, &s.LastSubmissionDay)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(options, &s.RunningOptions); err != nil {
		return nil, fmt.Errorf("running_options: %w", err)
	}
	if s.RunningOptions == nil {
		s.RunningOptions = []string{}
	}
	return s, nil
}

// Create appends s as the newest version and fills in ID and CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Settings) error {
	options := s.RunningOptions
	if options == nil {
		options = []string{}
	}
	encoded, err := json.Marshal(options)
	if err != nil {
		return err
	}

	query :=
		`INSERT INTO settings (created_by, plate_n_rows, plate_n_cols, running_options, last_submission_day)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`

	err = r.db.QueryRowContext(ctx, query,
		s.CreatedBy, s.PlateNRows, s.PlateNCols, string(encoded), s.LastSubmissionDay).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
