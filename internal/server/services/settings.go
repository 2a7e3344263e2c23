package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/dmitrijs2005/seqsubmit/internal/dbx"
	"github.com/dmitrijs2005/seqsubmit/internal/logging"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	"github.com/dmitrijs2005/seqsubmit/internal/server/repositories/repomanager"
)

const maxPlateRows = 26

// SettingsService reads and appends settings versions.
type SettingsService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewSettingsService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *SettingsService {
	return &SettingsService{db: db, repomanager: m, log: log.With("module", "settings")}
}

// SettingsUpdate carries a full replacement of the settings. Every field is
// required; a nil field means it was absent from the request.
type SettingsUpdate struct {
	PlateNRows        *int      `json:"plate_n_rows"`
	PlateNCols        *int      `json:"plate_n_cols"`
	RunningOptions    *[]string `json:"running_options"`
	LastSubmissionDay *int      `json:"last_submission_day"`
}

// Current returns the newest settings, writing the defaults first when none
// exist yet.
func (s *SettingsService) Current(ctx context.Context) (*models.Settings, error) {
	var current *models.Settings
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		current, err = currentSettings(ctx, s.repomanager, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// Update validates u and, when it is complete, appends it as the newest
// version. An invalid update writes nothing.
func (s *SettingsService) Update(ctx context.Context, actorEmail string, u SettingsUpdate) (Reply, error) {
	next, reason := u.validate()
	if reason != "" {
		s.log.Warn(ctx, "settings update rejected", "actor", actorEmail, "reason", reason)
		return rejectReply("Settings not updated: " + reason), nil
	}
	next.CreatedBy = actorEmail

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Settings(tx)
		if err := repo.Lock(ctx); err != nil {
			return err
		}
		return repo.Create(ctx, &next)
	})
	if err != nil {
		return Reply{}, fmt.Errorf("error saving settings: %w", err)
	}

	s.log.Info(ctx, "settings updated", "actor", actorEmail, "id", next.ID,
		"plate_n_rows", next.PlateNRows, "plate_n_cols", next.PlateNCols,
		"last_submission_day", next.LastSubmissionDay)
	return okReply("Settings updated"), nil
}

func (u SettingsUpdate) validate() (models.Settings, string) {
	var missing []string
	if u.PlateNRows == nil {
		missing = append(missing, "plate_n_rows")
	}
	if u.PlateNCols == nil {
		missing = append(missing, "plate_n_cols")
	}
	if u.RunningOptions == nil {
		missing = append(missing, "running_options")
	}
	if u.LastSubmissionDay == nil {
		missing = append(missing, "last_submission_day")
	}
	if len(missing) > 0 {
		return models.Settings{}, "missing " + strings.Join(missing, ", ")
	}

	next := models.Settings{
		PlateNRows:        *u.PlateNRows,
		PlateNCols:        *u.PlateNCols,
		RunningOptions:    append([]string{}, *u.RunningOptions...),
		LastSubmissionDay: *u.LastSubmissionDay,
	}

	switch {
	case next.PlateNRows < 1 || next.PlateNRows > maxPlateRows:
		return next, fmt.Sprintf("plate_n_rows must be between 1 and %d", maxPlateRows)
	case next.PlateNCols < 1:
		return next, "plate_n_cols must be at least 1"
	case next.LastSubmissionDay < 0 || next.LastSubmissionDay > 6:
		return next, "last_submission_day must be between 0 and 6"
	}
	for _, o := range next.RunningOptions {
		if strings.TrimSpace(o) == "" {
			return next, "running_options must not contain empty values"
		}
	}
	return next, ""
}

// currentSettings reads the newest settings through db, bootstrapping the
// defaults under the settings lock when the log is empty. db should be a
// transaction so the lock is held until the bootstrap row is committed.
func currentSettings(ctx context.Context, m repomanager.RepositoryManager, db dbx.DBTX) (*models.Settings, error) {
	repo := m.Settings(db)

	current, err := repo.Latest(ctx)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error reading settings: %w", err)
	}

	if err := repo.Lock(ctx); err != nil {
		return nil, err
	}
	// Another request may have bootstrapped while we waited for the lock.
	current, err = repo.Latest(ctx)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error reading settings: %w", err)
	}

	defaults := models.DefaultSettings()
	if err := repo.Create(ctx, &defaults); err != nil {
		return nil, fmt.Errorf("error creating default settings: %w", err)
	}
	return &defaults, nil
}
