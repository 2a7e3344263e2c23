package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/dmitrijs2005/seqsubmit/internal/dbx"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	"github.com/dmitrijs2005/seqsubmit/internal/server/repositories/repomanager"
)

const (
	msgSubmissionClosed = "Sample submission is closed for this week."
	msgAllSamplesTaken  = "All samples have been taken this week."
)

// Remaining is the weekly quota as seen on one date.
type Remaining struct {
	Remaining int    `json:"remaining"`
	Message   string `json:"message"`
}

// QuotaService answers quota questions for the week containing a date.
type QuotaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewQuotaService(db *sql.DB, m repomanager.RepositoryManager) *QuotaService {
	return &QuotaService{db: db, repomanager: m}
}

func (q *QuotaService) Remaining(ctx context.Context, date time.Time) (Remaining, error) {
	var r Remaining
	err := dbx.WithTx(ctx, q.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		settings, err := currentSettings(ctx, q.repomanager, tx)
		if err != nil {
			return err
		}
		monday, sunday := models.Bounds(date)
		count, err := q.repomanager.Samples(tx).CountBetween(ctx, monday, sunday)
		if err != nil {
			return err
		}
		r = remainingFor(*settings, count, date)
		return nil
	})
	return r, err
}

// NextFreeSlot reports the slot the next submission on date would get.
func (q *QuotaService) NextFreeSlot(ctx context.Context, date time.Time) (models.Slot, error) {
	var slot models.Slot
	err := dbx.WithTx(ctx, q.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		settings, err := currentSettings(ctx, q.repomanager, tx)
		if err != nil {
			return err
		}
		monday, sunday := models.Bounds(date)
		used, err := q.repomanager.Samples(tx).PrimaryKeysBetween(ctx, monday, sunday)
		if err != nil {
			return err
		}
		slot, err = NextFreeSlot(*settings, used, date)
		return err
	})
	return slot, err
}

// remainingFor applies the weekly window and capacity to count samples
// already placed in date's week. Weekdays count from Monday = 0.
func remainingFor(s models.Settings, count int, date time.Time) Remaining {
	if models.Weekday(date) > s.LastSubmissionDay {
		return Remaining{Remaining: 0, Message: msgSubmissionClosed}
	}
	remaining := max(0, s.Capacity()-count)
	if remaining == 0 {
		return Remaining{Remaining: 0, Message: msgAllSamplesTaken}
	}
	return Remaining{Remaining: remaining}
}

// NextFreeSlot scans the plate row by row and returns the first slot whose
// primary key for date's week is not in used. It fails with
// common.ErrCapacityExceeded when every slot is taken.
func NextFreeSlot(s models.Settings, used []string, date time.Time) (models.Slot, error) {
	taken := make(map[string]struct{}, len(used))
	for _, k := range used {
		taken[k] = struct{}{}
	}

	week := models.WeekOf(date)
	for row := 0; row < s.PlateNRows; row++ {
		for col := 0; col < s.PlateNCols; col++ {
			slot := models.Slot{Row: row, Col: col}
			if _, ok := taken[week.PrimaryKey(slot)]; !ok {
				return slot, nil
			}
		}
	}
	return models.Slot{}, common.ErrCapacityExceeded
}
