// Package blob defines the file store used for reference sequences, result
// files and weekly archives, along with the key layout shared by all
// drivers. Keys are slash-separated paths such as
// "2022/47/inputs/references/22_47_A1_plasmid.fasta".
package blob

import (
	"context"
	"path"

	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
)

// Store is implemented by the fs, s3 and memory drivers. Get of a missing
// key returns common.ErrorNotFound. Put overwrites.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// ReferenceKey is where the reference FASTA of the sample with the given
// base name is kept.
func ReferenceKey(w models.Week, baseName string) string {
	return path.Join(w.Dir(), "inputs", "references", baseName+".fasta")
}

// ResultKey is where a result file of type ext ("fasta", "gbk", "zip") is
// kept.
func ResultKey(w models.Week, baseName, ext string) string {
	return path.Join(w.Dir(), "results", baseName+"."+ext)
}

// SamplesArchiveKey is where the week's sample sheet archive is kept.
func SamplesArchiveKey(w models.Week) string {
	return path.Join(w.Dir(), "inputs", "samples.zip")
}
