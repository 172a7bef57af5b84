package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/softmill/filedex/internal/apperr"
	"github.com/softmill/filedex/internal/models"
)

// delimiter separates the seven fields of a registry line.
const delimiter = "|"

// timeLayout is the fixed second-precision timestamp form. Timestamps are
// stored in UTC; time.Parse reads the zoneless layout back as UTC, so the
// round trip preserves the instant. The layout sorts lexically in
// chronological order.
const timeLayout = "2006-01-02T15:04:05"

// encodeLine renders a record as a single backing-file line:
//
//	id|fileName|storagePath|category|createdAt|updatedAt|content
//
// Only content is escaped; the other fields must never contain the delimiter
// or newlines (callers enforce this through filename validation).
func encodeLine(r *models.Record) string {
	fields := []string{
		r.ID,
		r.FileName,
		r.StoragePath,
		r.Category,
		r.CreatedAt.UTC().Format(timeLayout),
		r.UpdatedAt.UTC().Format(timeLayout),
		escapeContent(r.Content),
	}
	return strings.Join(fields, delimiter)
}

// decodeLine parses one backing-file line back into a record. The line is
// split at the first six delimiters only, so any delimiter left in the
// (escaped) content field survives verbatim.
func decodeLine(line string) (*models.Record, error) {
	parts := strings.SplitN(line, delimiter, 7)
	if len(parts) < 7 {
		return nil, fmt.Errorf("%w: expected 7 fields, got %d: %s", apperr.ErrCorrupt, len(parts), line)
	}

	createdAt, err := time.Parse(timeLayout, strings.TrimSpace(parts[4]))
	if err != nil {
		return nil, fmt.Errorf("%w: bad createdAt %q: %v", apperr.ErrCorrupt, parts[4], err)
	}
	updatedAt, err := time.Parse(timeLayout, strings.TrimSpace(parts[5]))
	if err != nil {
		return nil, fmt.Errorf("%w: bad updatedAt %q: %v", apperr.ErrCorrupt, parts[5], err)
	}

	return models.Restore(
		strings.TrimSpace(parts[0]),
		strings.TrimSpace(parts[1]),
		unescapeContent(parts[6]),
		strings.TrimSpace(parts[2]),
		strings.TrimSpace(parts[3]),
		createdAt,
		updatedAt,
	), nil
}

// escapeContent makes content safe to embed as the last field of a line.
// Backslash is escaped first so the sequences introduced below stay unambiguous.
func escapeContent(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, delimiter, `\p`)
	return s
}

// unescapeContent reverses escapeContent. A single left-to-right scan consumes
// each escape sequence exactly once, so an escaped backslash can never be
// re-interpreted as the start of another sequence.
func unescapeContent(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'p':
			b.WriteString(delimiter)
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		default:
			// Unknown sequence: keep both bytes verbatim.
			b.WriteByte(c)
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
