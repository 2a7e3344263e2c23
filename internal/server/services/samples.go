package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/dmitrijs2005/seqsubmit/internal/dbx"
	"github.com/dmitrijs2005/seqsubmit/internal/logging"
	"github.com/dmitrijs2005/seqsubmit/internal/server/archive"
	"github.com/dmitrijs2005/seqsubmit/internal/server/auth"
	"github.com/dmitrijs2005/seqsubmit/internal/server/blob"
	"github.com/dmitrijs2005/seqsubmit/internal/server/metrics"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	"github.com/dmitrijs2005/seqsubmit/internal/server/repositories/repomanager"
)

const (
	msgInvalidRunningOption = "Invalid running option"
	msgInvalidSampleName    = "Invalid sample name"
	msgInvalidReference     = "Reference sequence file is not a valid FASTA file"
	msgSampleNotFound       = "Sample not found"
)

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// NewSample is a submission request. Reference is optional.
type NewSample struct {
	Email         string
	Name          string
	RunningOption string
	Concentration int
	Reference     *Upload
}

// Download is a stored file handed back to a client.
type Download struct {
	Filename string
	Data     []byte
}

// SampleService registers samples and serves their files.
type SampleService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	metrics     *metrics.Metrics
	log         logging.Logger
	now         func() time.Time
}

func NewSampleService(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store, mx *metrics.Metrics, log logging.Logger) *SampleService {
	return &SampleService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		metrics:     mx,
		log:         log.With("module", "samples"),
		now:         time.Now,
	}
}

// Add places a new sample on today's plate. A refused submission returns a
// nil sample and the message to show. common.ErrSlotTaken means a
// concurrent submission claimed the same key; the call may be retried.
//
// Counting, slot selection, the insert and the reference upload all happen
// in one transaction holding the week's lock, so nothing is written for a
// refused or failed submission.
func (s *SampleService) Add(ctx context.Context, req NewSample) (*models.Sample, string, error) {
	date := models.Date(s.now())
	week := models.WeekOf(date)
	monday, sunday := models.Bounds(date)

	if !validSampleName(req.Name) {
		s.reject(ctx, req, "name", msgInvalidSampleName)
		return nil, msgInvalidSampleName, nil
	}

	var (
		created *models.Sample
		refusal string
		reason  string
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		settings, err := currentSettings(ctx, s.repomanager, tx)
		if err != nil {
			return err
		}

		repo := s.repomanager.Samples(tx)
		if err := repo.LockWeek(ctx, week); err != nil {
			return err
		}

		count, err := repo.CountBetween(ctx, monday, sunday)
		if err != nil {
			return err
		}
		if r := remainingFor(*settings, count, date); r.Remaining == 0 {
			refusal, reason = r.Message, "quota"
			return nil
		}

		if !settings.AllowsRunningOption(req.RunningOption) {
			refusal, reason = msgInvalidRunningOption, "running_option"
			return nil
		}

		used, err := repo.PrimaryKeysBetween(ctx, monday, sunday)
		if err != nil {
			return err
		}
		slot, err := NextFreeSlot(*settings, used, date)
		if errors.Is(err, common.ErrCapacityExceeded) {
			refusal, reason = msgAllSamplesTaken, "quota"
			return nil
		}
		if err != nil {
			return err
		}

		sample := &models.Sample{
			PrimaryKey:    week.PrimaryKey(slot),
			Email:         req.Email,
			Name:          req.Name,
			RunningOption: req.RunningOption,
			Concentration: req.Concentration,
			Date:          date,
		}

		if req.Reference != nil {
			desc, err := fastaDescription(req.Reference.Data)
			if err != nil {
				refusal, reason = msgInvalidReference, "reference"
				return nil
			}
			sample.ReferenceSequenceDescription = &desc
		}

		if err := repo.Create(ctx, sample); err != nil {
			return err
		}

		if req.Reference != nil {
			if err := s.blobs.Put(ctx, blob.ReferenceKey(week, sample.BaseName()), req.Reference.Data); err != nil {
				return fmt.Errorf("error storing reference sequence: %w", err)
			}
		}

		created = sample
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrSlotTaken) {
			s.metrics.SlotConflict()
			s.log.Warn(ctx, "sample slot taken by a concurrent submission", "email", req.Email, "name", req.Name)
			return nil, "", err
		}
		s.log.Error(ctx, "error adding sample", "email", req.Email, "error", err)
		return nil, "", err
	}

	if created == nil {
		s.reject(ctx, req, reason, refusal)
		return nil, refusal, nil
	}

	s.metrics.SampleSubmitted()
	s.log.Info(ctx, "sample added", "primary_key", created.PrimaryKey, "email", created.Email, "name", created.Name)
	return created, "", nil
}

func (s *SampleService) reject(ctx context.Context, req NewSample, reason, msg string) {
	s.metrics.SubmissionRejected(reason)
	s.log.Warn(ctx, "sample rejected", "email", req.Email, "name", req.Name, "reason", msg)
}

// validSampleName keeps names usable as part of a file name.
func validSampleName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

// List returns the samples submitted by email, or every sample when email
// is empty.
func (s *SampleService) List(ctx context.Context, email string) ([]*models.Sample, error) {
	list, err := s.repomanager.Samples(s.db).List(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error listing samples: %w", err)
	}
	return list, nil
}

// lookup finds a sample the requester may see: admins see every sample,
// other users only their own.
func (s *SampleService) lookup(ctx context.Context, who auth.Identity, primaryKey string) (*models.Sample, error) {
	sample, err := s.repomanager.Samples(s.db).GetByPrimaryKey(ctx, primaryKey)
	if err != nil {
		return nil, err
	}
	if !who.IsAdmin && sample.Email != who.Email {
		return nil, common.ErrorNotFound
	}
	return sample, nil
}

// Reference returns the reference FASTA of a sample.
func (s *SampleService) Reference(ctx context.Context, who auth.Identity, primaryKey string) (*Download, Reply, error) {
	sample, err := s.lookup(ctx, who, primaryKey)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, rejectReply(msgSampleNotFound), nil
	}
	if err != nil {
		return nil, Reply{}, err
	}
	if sample.ReferenceSequenceDescription == nil {
		return nil, rejectReply("Sample does not contain a reference sequence"), nil
	}

	key := blob.ReferenceKey(sample.Week(), sample.BaseName())
	data, err := s.blobs.Get(ctx, key)
	if errors.Is(err, common.ErrorNotFound) {
		s.log.Warn(ctx, "reference file missing", "key", key)
		return nil, rejectReply("Fasta file not found"), nil
	}
	if err != nil {
		return nil, Reply{}, err
	}
	return &Download{Filename: path.Base(key), Data: data}, okReply(""), nil
}

// ResultFileTypes are the result files a sample may have.
var ResultFileTypes = []string{"fasta", "gbk", "zip"}

// Result returns one result file of a sample.
func (s *SampleService) Result(ctx context.Context, who auth.Identity, primaryKey, fileType string) (*Download, Reply, error) {
	if !slices.Contains(ResultFileTypes, fileType) {
		return nil, rejectReply(fmt.Sprintf("Invalid filetype %s requested", fileType)), nil
	}

	sample, err := s.lookup(ctx, who, primaryKey)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, rejectReply(msgSampleNotFound), nil
	}
	if err != nil {
		return nil, Reply{}, err
	}

	var available bool
	switch fileType {
	case "fasta":
		available = sample.HasResultsFasta
	case "gbk":
		available = sample.HasResultsGbk
	case "zip":
		available = sample.HasResultsZip
	}
	if !available {
		return nil, rejectReply(fmt.Sprintf("No %s results available", fileType)), nil
	}

	key := blob.ResultKey(sample.Week(), sample.BaseName(), fileType)
	data, err := s.blobs.Get(ctx, key)
	if errors.Is(err, common.ErrorNotFound) {
		s.log.Warn(ctx, "result file missing", "key", key)
		return nil, rejectReply(fmt.Sprintf("Results %s file not found", fileType)), nil
	}
	if err != nil {
		return nil, Reply{}, err
	}
	return &Download{Filename: path.Base(key), Data: data}, okReply(""), nil
}

var samplesSheetHeader = []string{
	"primary_key", "email", "name", "running_option", "concentration", "date", "reference_sequence_description",
}

// WeeklyArchive packs the sample sheet of the week containing date and the
// reference sequences of its samples, stores the archive next to the
// week's inputs and returns it.
func (s *SampleService) WeeklyArchive(ctx context.Context, date time.Time) (*Download, error) {
	week := models.WeekOf(date)
	monday, sunday := models.Bounds(date)

	list, err := s.repomanager.Samples(s.db).ListBetween(ctx, monday, sunday)
	if err != nil {
		return nil, fmt.Errorf("error listing samples: %w", err)
	}

	var sheet bytes.Buffer
	w := csv.NewWriter(&sheet)
	w.Comma = '\t'
	if err := w.Write(samplesSheetHeader); err != nil {
		return nil, err
	}

	entries := []archive.Entry{{Name: "samples.tsv"}}
	for _, sm := range list {
		desc := ""
		if sm.ReferenceSequenceDescription != nil {
			desc = *sm.ReferenceSequenceDescription
		}
		if err := w.Write([]string{
			sm.PrimaryKey, sm.Email, sm.Name, sm.RunningOption,
			strconv.Itoa(sm.Concentration), sm.Date.Format(time.DateOnly), desc,
		}); err != nil {
			return nil, err
		}

		if sm.ReferenceSequenceDescription == nil {
			continue
		}
		key := blob.ReferenceKey(week, sm.BaseName())
		data, err := s.blobs.Get(ctx, key)
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "reference file missing from weekly archive", "key", key)
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, archive.Entry{Name: path.Join("references", path.Base(key)), Data: data})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	entries[0].Data = sheet.Bytes()

	zipped, err := archive.Build(entries, s.now())
	if err != nil {
		return nil, fmt.Errorf("error building samples archive: %w", err)
	}

	key := blob.SamplesArchiveKey(week)
	if err := s.blobs.Put(ctx, key, zipped); err != nil {
		return nil, fmt.Errorf("error storing samples archive: %w", err)
	}

	s.log.Info(ctx, "weekly samples archive written", "key", key, "samples", len(list))
	return &Download{Filename: fmt.Sprintf("samples_%d_%d.zip", week.Year, week.Week), Data: zipped}, nil
}
