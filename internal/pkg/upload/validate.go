package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxGameFileSize is the maximum accepted size for an uploaded game file (16 MiB)
const MaxGameFileSize = 16 * 1024 * 1024

var allowedExt = map[string]bool{
	".html": true,
	".htm":  true,
}

// ValidateGameBySniff checks the provided filename (extension) and the first bytes (head)
// of an uploaded game file. Games are single-file HTML5 bundles, so only HTML content
// is accepted. Returns the detected mime or an error.
func ValidateGameBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", errors.New("only HTML game files are supported: .html, .htm")
	}

	detected := http.DetectContentType(head)

	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return detected, nil
	}

	// DetectContentType only sniffs a small prefix; files starting with long comments
	// or whitespace may come back as text/plain. Accept those by extension.
	if strings.HasPrefix(detected, "text/plain") {
		return "text/html; charset=utf-8", nil
	}

	return "", errors.New("file content does not look like an HTML game")
}

// ValidateGameSize checks the declared size against the upload limit
func ValidateGameSize(size int64) error {
	if size <= 0 {
		return errors.New("uploaded game file is empty")
	}
	if size > MaxGameFileSize {
		return errors.New("game file exceeds the 16 MB upload limit")
	}
	return nil
}
