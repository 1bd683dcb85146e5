// Package document turns local PDF paths into PdfDocument records.
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"agentctl/internal/domain"
)

// DefaultConcurrency bounds OpenAll when the caller passes limit <= 0.
const DefaultConcurrency = 4

var lastID atomic.Int64

// nextID returns a nanosecond timestamp id, bumped when two documents are
// opened within the same tick.
func nextID() string {
	for {
		now := time.Now().UnixNano()
		prev := lastID.Load()
		if now <= prev {
			now = prev + 1
		}
		if lastID.CompareAndSwap(prev, now) {
			return strconv.FormatInt(now, 10)
		}
	}
}

// Open stats path and counts its pages. A file pdfcpu cannot read still yields
// a document with Pages set to 1.
func Open(path string) (domain.PdfDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.PdfDocument{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.PdfDocument{}, fmt.Errorf("%s is a directory", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return domain.PdfDocument{
		ID:         nextID(),
		Name:       info.Name(),
		Path:       abs,
		Size:       info.Size(),
		UploadedAt: time.Now(),
		Pages:      pageCount(abs),
	}, nil
}

func pageCount(path string) (n int) {
	defer func() {
		if recover() != nil {
			n = 1
		}
	}()
	n, err := pdfapi.PageCountFile(path)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// OpenAll opens paths with at most limit files in flight. Results keep the
// order of paths; the first failure cancels the rest.
func OpenAll(ctx context.Context, paths []string, limit int) ([]domain.PdfDocument, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	docs := make([]domain.PdfDocument, len(paths))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, p := range paths {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := Open(p)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}
