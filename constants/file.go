package constants

import "strings"

// TextExtensions are picked up by the ingest watcher and submitted as pasted job descriptions.
var TextExtensions = map[string]struct{}{
	"txt": {},
	"md":  {},
}

// PDFContentType is the only binary résumé format we accept.
const PDFContentType = "application/pdf"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDF reports whether a file name or content type denotes a PDF.
func IsPDF(fileName, contentType string) bool {
	if strings.EqualFold(strings.TrimSpace(contentType), PDFContentType) {
		return true
	}
	i := strings.LastIndex(fileName, ".")
	return i >= 0 && NormalizeExt(fileName[i:]) == "pdf"
}
