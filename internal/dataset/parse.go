// Package dataset builds TabularDatasets from local files the way the upload
// page does: a naive comma split for CSV, a raw payload for JSON, and a fixed
// sample table for anything it cannot read.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentctl/internal/domain"
)

// PreviewRows is how many parsed rows are kept in memory.
const PreviewRows = 100

var ErrEmpty = errors.New("no header line")

// ParseCSV splits text on newlines and commas without quote handling. Blank
// lines are dropped, headers and values are trimmed, and a row shorter than
// the header gets "" for its missing cells. Only the first PreviewRows rows are
// kept; TotalRows counts all of them.
func ParseCSV(name string, size int64, text string) (*domain.TabularDataset, error) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("parse %s: %w", name, ErrEmpty)
	}

	headers := splitTrim(lines[0])
	body := lines[1:]
	rows := make([]domain.Row, 0, min(len(body), PreviewRows))
	for _, line := range body[:min(len(body), PreviewRows)] {
		values := splitTrim(line)
		row := make(domain.Row, len(headers))
		for i, h := range headers {
			v := ""
			if i < len(values) {
				v = values[i]
			}
			row[h] = v
		}
		rows = append(rows, row)
	}

	return &domain.TabularDataset{
		Kind:       domain.KindCSV,
		Filename:   name,
		Size:       size,
		Headers:    headers,
		Rows:       rows,
		TotalRows:  len(body),
		UploadedAt: time.Now(),
	}, nil
}

// ParseJSON keeps the decoded payload as-is. The result has no headers or
// rows, so it is not tabular.
func ParseJSON(name string, size int64, data []byte) (*domain.TabularDataset, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &domain.TabularDataset{
		Kind:       domain.KindJSON,
		Filename:   name,
		Size:       size,
		Data:       payload,
		UploadedAt: time.Now(),
	}, nil
}

func splitTrim(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
