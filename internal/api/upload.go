package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"agentctl/internal/domain"
)

// File is a named binary payload. *os.File satisfies it.
type File interface {
	io.Reader
	Name() string
}

// namedReader adapts an in-memory payload to File.
type namedReader struct {
	io.Reader
	name string
}

func (n namedReader) Name() string { return n.name }

// NewFile wraps r so it uploads under the given file name.
func NewFile(name string, r io.Reader) File {
	return namedReader{Reader: r, name: name}
}

// OpenFile opens path for upload. The caller closes the returned file.
func OpenFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

type CSVUploadResult struct {
	OK       bool         `json:"ok"`
	Filename string       `json:"filename"`
	Shape    domain.Shape `json:"shape"`
	Preview  []domain.Row `json:"preview,omitempty"`
}

type PDFUploadResult struct {
	OK        bool   `json:"ok"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

type IndexResult struct {
	IndexDir string `json:"index_dir"`
}

// UploadCSV posts a single CSV file as multipart field "file".
func (c *Client) UploadCSV(ctx context.Context, f File) (*CSVUploadResult, error) {
	var out CSVUploadResult
	if err := c.uploadFiles(ctx, PathUploadCSV, "file", []File{f}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPDF posts a single PDF file as multipart field "file".
func (c *Client) UploadPDF(ctx context.Context, f File) (*PDFUploadResult, error) {
	var out PDFUploadResult
	if err := c.uploadFiles(ctx, PathUploadPDF, "file", []File{f}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RAGIndex uploads files as repeated multipart field "files" and returns the
// index directory token the backend created.
func (c *Client) RAGIndex(ctx context.Context, files []File) (*IndexResult, error) {
	var out IndexResult
	if err := c.uploadFiles(ctx, PathRAGIndex, "files", files, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// uploadFiles buffers the multipart body so retries can resend it.
func (c *Client) uploadFiles(ctx context.Context, endpoint, field string, files []File, out any) error {
	body, contentType, err := multipartBody(field, files)
	if err != nil {
		return fmt.Errorf("build %s body: %w", endpoint, err)
	}
	return c.do(ctx, http.MethodPost, endpoint, contentType, body, out)
}

func multipartBody(field string, files []File) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(field, filepath.Base(f.Name()))
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, "", fmt.Errorf("read %s: %w", f.Name(), err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
