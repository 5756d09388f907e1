// Package formatx is the single source of truth for which file formats the
// relay accepts and how they are framed for download. Both the upload and
// the retrieval paths consult it, so a record created under a format that
// was later removed from the allow-list is rejected at download time too.
package formatx

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ajeevsan/fileUpload-backend/internal/common"
)

// DefaultFormats is the fixed extension allow-list of the service.
var DefaultFormats = []string{".jpg", ".jpeg", ".pdf", ".rar", ".txt", ".doc", ".docx"}

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".pdf":  "application/pdf",
	".rar":  "application/x-rar-compressed",
	".txt":  "text/plain",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Guard validates filename extensions against an immutable allow-list and
// resolves their MIME types. Safe for concurrent use.
type Guard struct {
	allowed map[string]struct{}
	sorted  []string
}

// NewGuard builds a Guard for the given extensions (leading dot, lower
// case). Pass DefaultFormats for production behavior.
func NewGuard(formats []string) *Guard {
	allowed := make(map[string]struct{}, len(formats))
	sorted := make([]string, 0, len(formats))
	for _, f := range formats {
		ext := strings.ToLower(f)
		if _, ok := allowed[ext]; ok {
			continue
		}
		allowed[ext] = struct{}{}
		sorted = append(sorted, ext)
	}
	sort.Strings(sorted)
	return &Guard{allowed: allowed, sorted: sorted}
}

// IsAllowed reports whether the filename's extension is on the allow-list.
// The comparison is case-insensitive.
func (g *Guard) IsAllowed(filename string) bool {
	_, ok := g.allowed[normalizeExt(filename)]
	return ok
}

// MimeType returns the MIME type for an allowed filename. Unknown but
// allowed extensions fall back to application/octet-stream. Disallowed
// extensions yield an error wrapping common.ErrUnsupportedFormat whose
// message enumerates the accepted formats.
func (g *Guard) MimeType(filename string) (string, error) {
	ext := normalizeExt(filename)
	if _, ok := g.allowed[ext]; !ok {
		return "", fmt.Errorf("%w: %s is not allowed, allowed formats: %s",
			common.ErrUnsupportedFormat, ext, strings.Join(g.sorted, ", "))
	}
	if mt, ok := mimeTypes[ext]; ok {
		return mt, nil
	}
	return "application/octet-stream", nil
}

// AllowedFormats returns the allow-list in sorted order, for error messages
// and API responses.
func (g *Guard) AllowedFormats() []string {
	return g.sorted
}

func normalizeExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
