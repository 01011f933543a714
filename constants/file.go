package constants

import "strings"

// File formats recognised by the extraction engine.
const (
	PDF     = "PDF"
	DOCX    = "DOCX"
	UNKNOWN = "UNKNOWN"
)

// AllowedExtensions holds the file extensions accepted at upload.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"docx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a document format.
// Unrecognised extensions map to UNKNOWN; the extractor then sniffs content.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "docx":
		return DOCX
	default:
		return UNKNOWN
	}
}
