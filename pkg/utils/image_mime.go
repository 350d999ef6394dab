package utils

import (
	"net/http"
	"strings"
)

// SniffImageMIME returns the detected content type of data and whether it
// is an image.
func SniffImageMIME(data []byte) (string, bool) {
	ct := http.DetectContentType(data)
	return ct, strings.HasPrefix(ct, "image/")
}

func ExtensionForMIME(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
