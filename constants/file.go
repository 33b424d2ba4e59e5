package constants

import "strings"

// AllowedContentTypes holds the upload content types accepted at job creation
// and enforced again by the storage layer during the transfer itself.
var AllowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
	"image/jpg":       {},
}

// MaxFileSizeBytes caps uploads at 10MB.
const MaxFileSizeBytes = 10 << 20

// ContentTypeForFileName guesses a content type from the file extension.
// Analysis only distinguishes PDF from image input.
func ContentTypeForFileName(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return "application/pdf"
	}
	return "image/jpeg"
}
