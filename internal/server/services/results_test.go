package services

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/seqsubmit/internal/logging"
	"github.com/dmitrijs2005/seqsubmit/internal/server/archive"
	"github.com/dmitrijs2005/seqsubmit/internal/server/blob/memory"
	"github.com/dmitrijs2005/seqsubmit/internal/server/mail"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	resultFasta = ">22_46_A1_s1 consensus\nACGTTGCA\n"
	resultGbk   = "LOCUS       22_46_A1_s1   8 bp    DNA\n//\n"
)

type resultFixture struct {
	m     *fakeRepoManager
	blobs *memory.Store
	rec   *mail.Recorder
	svc   *ResultService
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()
	m := newFakeRepoManager()
	require.NoError(t, m.samples.Create(context.Background(), &models.Sample{
		PrimaryKey: "22_46_A1", Email: "u@embl.de", Name: "s1", Date: day("2022-11-16"),
	}))
	blobs := memory.New()
	rec := &mail.Recorder{}
	return &resultFixture{
		m: m, blobs: blobs, rec: rec,
		svc: NewResultService(newTxDB(t), m, blobs, rec, nil, logging.Discard()),
	}
}

func zipOf(t *testing.T, entries ...archive.Entry) []byte {
	t.Helper()
	data, err := archive.Build(entries, time.Date(2022, 11, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return data
}

func TestResultService_Process_Success(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	data := zipOf(t,
		archive.Entry{Name: "22_46_A1_s1/22_46_A1_s1.fasta", Data: []byte(resultFasta)},
		archive.Entry{Name: "22_46_A1_s1/22_46_A1_s1.gbk", Data: []byte(resultGbk)},
		archive.Entry{Name: "22_46_A1_s1/reads.fastq", Data: []byte("@r1\nAC\n+\nII\n")},
	)

	reply, err := f.svc.Process(ctx, ResultUpload{Success: true, Filename: "22_46_A1_s1.zip", Data: data})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, reply.Code)
	assert.Contains(t, reply.Message, "22_46_A1_s1.zip")

	assert.Equal(t, []string{
		"2022/46/results/22_46_A1_s1.fasta",
		"2022/46/results/22_46_A1_s1.gbk",
		"2022/46/results/22_46_A1_s1.zip",
	}, f.blobs.Keys(""))
	stored, err := f.blobs.Get(ctx, "2022/46/results/22_46_A1_s1.fasta")
	require.NoError(t, err)
	assert.Equal(t, resultFasta, string(stored))

	sample, err := f.m.samples.GetByPrimaryKey(ctx, "22_46_A1")
	require.NoError(t, err)
	assert.True(t, sample.HasResultsFasta)
	assert.True(t, sample.HasResultsGbk)
	assert.True(t, sample.HasResultsZip)

	msg, ok := f.rec.Last()
	require.True(t, ok)
	assert.Equal(t, "u@embl.de", msg.To)
	assert.Contains(t, msg.Body, "22_46_A1_s1")
	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "22_46_A1_s1.fasta", msg.Attachments[0].Filename)
	assert.Equal(t, "22_46_A1_s1.gbk", msg.Attachments[1].Filename)
	assert.Equal(t, resultGbk, string(msg.Attachments[1].Data))
}

func TestResultService_Process_OnlyFasta(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()
	data := zipOf(t, archive.Entry{Name: "consensus.FASTA", Data: []byte(resultFasta)})

	reply, err := f.svc.Process(ctx, ResultUpload{PrimaryKey: "22_46_A1", Success: true, Filename: "upload.zip", Data: data})
	require.NoError(t, err)
	require.True(t, reply.OK(), reply.Message)

	sample, err := f.m.samples.GetByPrimaryKey(ctx, "22_46_A1")
	require.NoError(t, err)
	assert.True(t, sample.HasResultsFasta)
	assert.False(t, sample.HasResultsGbk)
	assert.True(t, sample.HasResultsZip)

	msg, ok := f.rec.Last()
	require.True(t, ok)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "22_46_A1_s1.fasta", msg.Attachments[0].Filename)
}

func TestResultService_Process_UnknownKey(t *testing.T) {
	f := newResultFixture(t)
	data := zipOf(t, archive.Entry{Name: "22_46_B7_x.fasta", Data: []byte(resultFasta)})

	reply, err := f.svc.Process(context.Background(), ResultUpload{Success: true, Filename: "22_46_B7_x.zip", Data: data})
	require.NoError(t, err)
	assert.Equal(t, Reply{Message: "Unknown primary key 22_46_B7", Code: http.StatusUnauthorized}, reply)
	assert.Empty(t, f.blobs.Keys(""))
	assert.Empty(t, f.rec.Sent())
}

func TestResultService_Process_Failure(t *testing.T) {
	f := newResultFixture(t)

	reply, err := f.svc.Process(context.Background(), ResultUpload{PrimaryKey: "22_46_A1", Success: false})
	require.NoError(t, err)
	assert.Equal(t, Reply{Message: "Failure of 22_46_A1 reported to u@embl.de", Code: http.StatusOK}, reply)
	assert.Empty(t, f.blobs.Keys(""))

	msg, ok := f.rec.Last()
	require.True(t, ok)
	assert.Equal(t, "u@embl.de", msg.To)
	assert.Contains(t, msg.Body, "not successful")
	assert.Empty(t, msg.Attachments)

	sample, _ := f.m.samples.GetByPrimaryKey(context.Background(), "22_46_A1")
	assert.False(t, sample.HasResultsZip)
}

func TestResultService_Process_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		upload  ResultUpload
		message string
	}{
		{
			name:    "no key anywhere",
			upload:  ResultUpload{Success: true, Filename: "results.zip", Data: []byte("x")},
			message: "Missing primary key",
		},
		{
			name:    "key and file disagree",
			upload:  ResultUpload{PrimaryKey: "22_46_A2", Success: true, Filename: "22_46_A1_s1.zip", Data: []byte("x")},
			message: "Primary key 22_46_A2 does not match file 22_46_A1_s1.zip",
		},
		{
			name:    "success without archive",
			upload:  ResultUpload{PrimaryKey: "22_46_A1", Success: true},
			message: "Result has success=True but no zipfile",
		},
		{
			name:    "not a zip",
			upload:  ResultUpload{PrimaryKey: "22_46_A1", Success: true, Filename: "r.zip", Data: []byte("definitely not a zip")},
			message: "Result file is not a valid zip file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResultFixture(t)
			reply, err := f.svc.Process(context.Background(), tt.upload)
			require.NoError(t, err)
			assert.Equal(t, Reply{Message: tt.message, Code: http.StatusUnauthorized}, reply)
			assert.Empty(t, f.blobs.Keys(""))
			assert.Empty(t, f.rec.Sent())
		})
	}
}

func TestResultService_Process_MailFailure(t *testing.T) {
	f := newResultFixture(t)
	f.rec.Err = errBoom{}
	data := zipOf(t, archive.Entry{Name: "22_46_A1_s1.fasta", Data: []byte(resultFasta)})

	reply, err := f.svc.Process(context.Background(), ResultUpload{Success: true, Filename: "22_46_A1_s1.zip", Data: data})
	require.NoError(t, err)
	assert.True(t, reply.OK())

	sample, _ := f.m.samples.GetByPrimaryKey(context.Background(), "22_46_A1")
	assert.True(t, sample.HasResultsZip)
}

func TestResolvePrimaryKey(t *testing.T) {
	key, _ := resolvePrimaryKey(ResultUpload{Filename: "dir/22_46_A12_my_sample.zip"})
	assert.Equal(t, "22_46_A12", key)

	key, _ = resolvePrimaryKey(ResultUpload{PrimaryKey: " 22_46_A1 ", Filename: "whatever.zip"})
	assert.Equal(t, "22_46_A1", key)
}

// storedZip writes entries uncompressed so their bytes can be altered in
// place afterwards.
func storedZip(t *testing.T, entries ...archive.Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write(e.Data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func assertNoResults(t *testing.T, f *resultFixture) {
	t.Helper()
	sample, err := f.m.samples.GetByPrimaryKey(context.Background(), "22_46_A1")
	require.NoError(t, err)
	assert.False(t, sample.HasResultsFasta)
	assert.False(t, sample.HasResultsGbk)
	assert.False(t, sample.HasResultsZip)
	assert.Empty(t, f.rec.Sent())
}

func TestResultService_Process_CorruptEntryStoresNothing(t *testing.T) {
	f := newResultFixture(t)
	data := storedZip(t,
		archive.Entry{Name: "22_46_A1_s1.fasta", Data: []byte(resultFasta)},
		archive.Entry{Name: "22_46_A1_s1.gbk", Data: []byte(resultGbk)},
	)
	i := bytes.Index(data, []byte("LOCUS"))
	require.Greater(t, i, 0)
	data[i] = 'X'

	reply, err := f.svc.Process(context.Background(), ResultUpload{Success: true, Filename: "22_46_A1_s1.zip", Data: data})
	require.NoError(t, err)
	assert.Equal(t, Reply{Message: "Could not read 22_46_A1_s1.gbk from zip file", Code: http.StatusUnauthorized}, reply)
	assert.Empty(t, f.blobs.Keys(""))
	assertNoResults(t, f)
}

// failOnSuffixStore fails every Put of a key ending in suffix.
type failOnSuffixStore struct {
	*memory.Store
	suffix string
}

func (s failOnSuffixStore) Put(ctx context.Context, key string, data []byte) error {
	if strings.HasSuffix(key, s.suffix) {
		return errBoom{}
	}
	return s.Store.Put(ctx, key, data)
}

func TestResultService_Process_StoreFailureRemovesWrittenFiles(t *testing.T) {
	f := newResultFixture(t)
	store := failOnSuffixStore{Store: f.blobs, suffix: ".zip"}
	f.svc = NewResultService(newTxDB(t), f.m, store, f.rec, nil, logging.Discard())
	data := zipOf(t,
		archive.Entry{Name: "22_46_A1_s1.fasta", Data: []byte(resultFasta)},
		archive.Entry{Name: "22_46_A1_s1.gbk", Data: []byte(resultGbk)},
	)

	_, err := f.svc.Process(context.Background(), ResultUpload{Success: true, Filename: "22_46_A1_s1.zip", Data: data})
	assert.ErrorIs(t, err, errBoom{})
	assert.Empty(t, f.blobs.Keys(""))
	assertNoResults(t, f)
}

func TestPickEntry(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		want    string
	}{
		{"exact stem", []string{"22_4_A10.fasta", "22_4_A1.fasta"}, "22_4_A1.fasta"},
		{"stem with name", []string{"out/22_4_A10_x.fasta", "out/22_4_A1_s1.FASTA"}, "out/22_4_A1_s1.FASTA"},
		{"unnamed fallback", []string{"22_4_A10_x.fasta", "consensus.fasta"}, "consensus.fasta"},
		{"only other sample", []string{"22_4_A10_x.fasta"}, ""},
		{"wrong extension", []string{"22_4_A1_s1.gbk"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make([]archive.Entry, 0, len(tt.entries))
			for _, n := range tt.entries {
				entries = append(entries, archive.Entry{Name: n, Data: []byte(">x\n")})
			}
			zr, err := archive.Open(zipOf(t, entries...))
			require.NoError(t, err)

			got, ok := pickEntry(zr, "22_4_A1", "fasta")
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
