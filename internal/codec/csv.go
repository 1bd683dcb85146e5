// Package codec turns in-memory tables into the text payloads the backend
// expects inside JSON request bodies.
//
// The CSV writer is deliberately lossy: it does no quoting, and every comma
// inside a cell becomes a single space.
package codec

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"agentctl/internal/domain"
)

// EncodeCSV writes headers joined by commas, a newline, then one line per row.
// Missing or nil cells render as the empty string. An empty rows slice yields a
// header-only document that still ends with the separating newline.
func EncodeCSV(headers []string, rows []domain.Row) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(headers, ","))
	sb.WriteByte('\n')
	for i, row := range rows {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, h := range headers {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strings.ReplaceAll(cellString(row.Cell(h)), ",", " "))
		}
	}
	return sb.String()
}

// ToBase64 encodes the UTF-8 bytes of text with the standard alphabet.
func ToBase64(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// EncodeDataset is EncodeCSV followed by ToBase64.
func EncodeDataset(d *domain.TabularDataset) string {
	return ToBase64(EncodeCSV(d.Headers, d.Rows))
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
