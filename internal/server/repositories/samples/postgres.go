package samples

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/dmitrijs2005/seqsubmit/internal/dbx"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sampleColumns = `primary_key, email, name, running_option, concentration, date,
	reference_sequence_description, has_results_fasta, has_results_gbk, has_results_zip`

// weekLockNamespace keeps week locks apart from other advisory locks.
const weekLockNamespace int64 = 1 << 32

// LockWeek takes a transaction-scoped advisory lock for week. Outside a
// transaction the lock would be released immediately, so callers must pass
// a *sql.Tx-backed repository.
func (r *PostgresRepository) LockWeek(ctx context.Context, week models.Week) error {
	key := weekLockNamespace + int64(week.Year*100+week.Week)
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples WHERE date BETWEEN $1 AND $2`, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) PrimaryKeysBetween(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT primary_key FROM samples WHERE date BETWEEN $1 AND $2`, from, to)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Create inserts sample. A clash on primary_key yields common.ErrSlotTaken.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Sample) error {
	query :=
		`INSERT INTO samples (primary_key, email, name, running_option, concentration, date, reference_sequence_description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		s.PrimaryKey, s.Email, s.Name, s.RunningOption, s.Concentration, s.Date, s.ReferenceSequenceDescription)
	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return common.ErrSlotTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByPrimaryKey(ctx context.Context, primaryKey string) (*models.Sample, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sampleColumns+` FROM samples WHERE primary_key = $1`, primaryKey)
	s, err := scanSample(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// List returns samples newest first. An empty email lists every sample.
func (r *PostgresRepository) List(ctx context.Context, email string) ([]*models.Sample, error) {
	if email == "" {
		return r.query(ctx, `SELECT `+sampleColumns+` FROM samples ORDER BY date DESC, primary_key`)
	}
	return r.query(ctx, `SELECT `+sampleColumns+` FROM samples WHERE email = $1 ORDER BY date DESC, primary_key`, email)
}

func (r *PostgresRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*models.Sample, error) {
	return r.query(ctx, `SELECT `+sampleColumns+` FROM samples WHERE date BETWEEN $1 AND $2 ORDER BY primary_key`, from, to)
}

// MarkResults sets the given result flags. Flags passed as false are left
// as they are.
func (r *PostgresRepository) MarkResults(ctx context.Context, primaryKey string, fasta, gbk, zip bool) error {
	query :=
		`UPDATE samples SET
			has_results_fasta = has_results_fasta OR $2,
			has_results_gbk = has_results_gbk OR $3,
			has_results_zip = has_results_zip OR $4
		 WHERE primary_key = $1`

	res, err := r.db.ExecContext(ctx, query, primaryKey, fasta, gbk, zip)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Sample, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSample(row scanner) (*models.Sample, error) {
	s := &models.Sample{}
	var description sql.NullString
	err := row.Scan(&s.PrimaryKey, &s.Email, &s.Name, &s.RunningOption, &s.Concentration, &s.Date,
		&description, &s.HasResultsFasta, &s.HasResultsGbk, &s.HasResultsZip)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		s.ReferenceSequenceDescription = &description.String
	}
	return s, nil
}
