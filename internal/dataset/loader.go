package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"agentctl/internal/api"
	"agentctl/internal/domain"
)

// Uploader forwards a CSV file to the backend. *api.Client implements it.
type Uploader interface {
	UploadCSV(ctx context.Context, f api.File) (*api.CSVUploadResult, error)
}

// Loader reads a local file into a dataset.
type Loader struct {
	uploader Uploader
	logger   *slog.Logger
}

// NewLoader returns a Loader. uploader may be nil to skip the backend copy.
func NewLoader(uploader Uploader, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{uploader: uploader, logger: logger}
}

// Load parses path into a dataset.
//
// CSV files are parsed locally and also sent to the backend; upload failures
// are logged and ignored so the local dataset is still returned. JSON files
// are kept raw. Other extensions, and files that fail to parse, yield the
// Sample table stamped with the file's name and size. Only a missing or
// unreadable file is an error.
func (l *Loader) Load(ctx context.Context, path string) (*domain.TabularDataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	name := filepath.Base(path)
	size := info.Size()

	var ds *domain.TabularDataset
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		ds, err = ParseCSV(name, size, string(data))
		if err == nil {
			l.forward(ctx, name, data)
		}
	case ".json":
		ds, err = ParseJSON(name, size, data)
	default:
		l.logger.Info("unsupported file type, using sample dataset", "file", name)
	}
	if err != nil {
		l.logger.Warn("cannot parse file, using sample dataset", "file", name, "err", err)
	}
	if ds == nil {
		ds = Sample()
		ds.Filename = name
		ds.Size = size
	}
	return ds, nil
}

func (l *Loader) forward(ctx context.Context, name string, data []byte) {
	if l.uploader == nil {
		return
	}
	if _, err := l.uploader.UploadCSV(ctx, api.NewFile(name, bytes.NewReader(data))); err != nil {
		l.logger.Debug("backend csv upload failed, keeping local dataset", "file", name, "err", err)
		return
	}
	l.logger.Debug("backend csv upload ok", "file", name)
}
