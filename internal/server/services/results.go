package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/dmitrijs2005/seqsubmit/internal/logging"
	"github.com/dmitrijs2005/seqsubmit/internal/server/archive"
	"github.com/dmitrijs2005/seqsubmit/internal/server/blob"
	"github.com/dmitrijs2005/seqsubmit/internal/server/mail"
	"github.com/dmitrijs2005/seqsubmit/internal/server/metrics"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	"github.com/dmitrijs2005/seqsubmit/internal/server/repositories/repomanager"
)

// primaryKeyPrefix matches the primary key at the start of a result file
// stem such as "22_46_A1_plasmid".
var primaryKeyPrefix = regexp.MustCompile(`^\d+_\d+_[A-Z]\d+`)

// ResultUpload is a finished sequencing run reported by an admin. When
// PrimaryKey is empty it is taken from the archive's file name.
type ResultUpload struct {
	PrimaryKey string
	Success    bool
	Filename   string
	Data       []byte
}

// ResultService stores sequencing results and notifies the submitter.
type ResultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	mailer      mail.Sender
	metrics     *metrics.Metrics
	log         logging.Logger
}

func NewResultService(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store, mailer mail.Sender, mx *metrics.Metrics, log logging.Logger) *ResultService {
	return &ResultService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		mailer:      mailer,
		metrics:     mx,
		log:         log.With("module", "results"),
	}
}

// Process handles one result upload. The sample is looked up before any
// file is written, so an unknown key leaves the store untouched. Result
// flags are set only for the files actually stored.
func (s *ResultService) Process(ctx context.Context, up ResultUpload) (Reply, error) {
	primaryKey, reply := resolvePrimaryKey(up)
	if primaryKey == "" {
		return reply, nil
	}

	repo := s.repomanager.Samples(s.db)
	sample, err := repo.GetByPrimaryKey(ctx, primaryKey)
	if errors.Is(err, common.ErrorNotFound) {
		s.metrics.ResultProcessed("unknown_sample")
		s.log.Warn(ctx, "result for unknown sample", "primary_key", primaryKey, "filename", up.Filename)
		return rejectReply(fmt.Sprintf("Unknown primary key %s", primaryKey)), nil
	}
	if err != nil {
		return Reply{}, err
	}

	if !up.Success {
		s.notify(ctx, mail.Message{
			To:      sample.Email,
			Subject: "Sequencing failed: " + sample.BaseName(),
			Body: fmt.Sprintf("Unfortunately the sequencing of your sample %s (%s) was not successful.\n",
				sample.PrimaryKey, sample.Name),
		})
		s.metrics.ResultProcessed("failure")
		s.log.Info(ctx, "sequencing failure reported", "primary_key", primaryKey)
		return okReply(fmt.Sprintf("Failure of %s reported to %s", primaryKey, sample.Email)), nil
	}

	if len(up.Data) == 0 {
		return rejectReply("Result has success=True but no zipfile"), nil
	}
	zr, err := archive.Open(up.Data)
	if err != nil {
		return rejectReply("Result file is not a valid zip file"), nil
	}

	week := sample.Week()
	base := sample.BaseName()

	// Every entry is read before anything is stored, so a damaged archive
	// leaves no files behind.
	var (
		attachments []mail.Attachment
		writes      []resultWrite
	)
	found := map[string]bool{}
	for _, ext := range []string{"fasta", "gbk"} {
		name, ok := pickEntry(zr, primaryKey, ext)
		if !ok {
			continue
		}
		data, err := zr.Read(name)
		if err != nil {
			s.metrics.ResultProcessed("unreadable")
			s.log.Warn(ctx, "result entry unreadable", "primary_key", primaryKey, "entry", name, "error", err)
			return rejectReply(fmt.Sprintf("Could not read %s from zip file", name)), nil
		}
		found[ext] = true
		attachments = append(attachments, mail.Attachment{Filename: base + "." + ext, Data: data})
		writes = append(writes, resultWrite{ext: ext, data: data})
	}
	writes = append(writes, resultWrite{ext: "zip", data: up.Data})
	if err := s.storeResults(ctx, week, base, writes); err != nil {
		return Reply{}, err
	}

	if err := repo.MarkResults(ctx, primaryKey, found["fasta"], found["gbk"], true); err != nil {
		return Reply{}, fmt.Errorf("error updating sample results: %w", err)
	}

	s.notify(ctx, mail.Message{
		To:          sample.Email,
		Subject:     "Sequencing results: " + base,
		Body:        resultBody(sample, found),
		Attachments: attachments,
	})

	s.metrics.ResultProcessed("success")
	s.log.Info(ctx, "result processed", "primary_key", primaryKey, "fasta", found["fasta"], "gbk", found["gbk"])

	filename := up.Filename
	if filename == "" {
		filename = base + ".zip"
	}
	return okReply("Successfully processed " + filename), nil
}

func resolvePrimaryKey(up ResultUpload) (string, Reply) {
	explicit := strings.TrimSpace(up.PrimaryKey)
	stem := strings.TrimSuffix(path.Base(up.Filename), path.Ext(up.Filename))
	fromName := primaryKeyPrefix.FindString(stem)

	switch {
	case explicit != "" && fromName != "" && explicit != fromName:
		return "", rejectReply(fmt.Sprintf("Primary key %s does not match file %s", explicit, up.Filename))
	case explicit != "":
		return explicit, Reply{}
	case fromName != "":
		return fromName, Reply{}
	}
	return "", rejectReply("Missing primary key")
}

type resultWrite struct {
	ext  string
	data []byte
}

// storeResults writes all result files of one sample. When a write fails the
// files already written are removed again.
func (s *ResultService) storeResults(ctx context.Context, week models.Week, base string, writes []resultWrite) error {
	var written []string
	for _, w := range writes {
		key := blob.ResultKey(week, base, w.ext)
		if err := s.blobs.Put(ctx, key, w.data); err != nil {
			for _, k := range written {
				if derr := s.blobs.Delete(ctx, k); derr != nil {
					s.log.Error(ctx, "error removing partial result", "key", k, "error", derr)
				}
			}
			return fmt.Errorf("error storing %s result: %w", w.ext, err)
		}
		written = append(written, key)
	}
	return nil
}

// pickEntry prefers an entry named after the sample. Otherwise it takes the
// first entry with the extension that is not named after another sample.
func pickEntry(zr *archive.Reader, primaryKey, ext string) (string, bool) {
	fallback := ""
	for _, name := range zr.NamesByExt(ext) {
		base := path.Base(name)
		stem := base[:len(base)-len(ext)-1]
		if stem == primaryKey || strings.HasPrefix(stem, primaryKey+"_") {
			return name, true
		}
		if fallback == "" && primaryKeyPrefix.FindString(stem) == "" {
			fallback = name
		}
	}
	return fallback, fallback != ""
}

func resultBody(sample *models.Sample, found map[string]bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The sequencing results for your sample %s are ready.\n\n", sample.BaseName())
	if found["fasta"] || found["gbk"] {
		b.WriteString("The consensus sequence files are attached to this email.\n")
	}
	b.WriteString("The full results can be downloaded from the website.\n")
	return b.String()
}

func (s *ResultService) notify(ctx context.Context, msg mail.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.EmailFailed()
		s.log.Warn(ctx, "notification email not sent", "to", msg.To, "subject", msg.Subject, "error", err)
	}
}
