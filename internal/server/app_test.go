package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/seqsubmit/internal/logging"
	"github.com/dmitrijs2005/seqsubmit/internal/server/blob/fs"
	"github.com/dmitrijs2005/seqsubmit/internal/server/blob/s3"
	"github.com/dmitrijs2005/seqsubmit/internal/server/config"
	"github.com/dmitrijs2005/seqsubmit/internal/server/mail"
	"github.com/dmitrijs2005/seqsubmit/internal/server/repositories/repomanager"
)

func TestNewBlobStore(t *testing.T) {
	ctx := context.Background()

	c := &config.Config{BlobDriver: "fs", DataPath: filepath.Join(t.TempDir(), "data")}
	store, err := NewBlobStore(ctx, c)
	require.NoError(t, err)
	assert.IsType(t, &fs.Store{}, store)

	c = &config.Config{BlobDriver: "s3", S3Region: "eu-central-1", S3Bucket: "seq", S3BaseEndpoint: "http://127.0.0.1:9000", S3RootUser: "u", S3RootPassword: "p"}
	store, err = NewBlobStore(ctx, c)
	require.NoError(t, err)
	assert.IsType(t, &s3.Store{}, store)

	_, err = NewBlobStore(ctx, &config.Config{BlobDriver: "tape"})
	assert.Error(t, err)
}

func TestNewComponents(t *testing.T) {
	c := &config.Config{}
	c.LoadDefaults()
	comp := NewComponents(nil, repomanager.NewPostgresRepositoryManager(), nil, &mail.Recorder{}, nil, logging.Discard(), c)

	assert.NotNil(t, comp.Users)
	assert.NotNil(t, comp.Samples)
	assert.NotNil(t, comp.Quota)
	assert.NotNil(t, comp.Settings)
	assert.NotNil(t, comp.Results)
}

func TestOpenDB_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := &config.Config{DatabaseDSN: "postgres://u:p@127.0.0.1:1/seqsubmit?sslmode=disable&connect_timeout=1"}
	_, err := OpenDB(ctx, c, repomanager.NewPostgresRepositoryManager())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db ping error")
}
