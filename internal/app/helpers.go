package app

import (
	"bufio"
	"path/filepath"
	"regexp"
	"strings"
)

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

const maxNameLength = 80

// sanitizeFileName keeps a display name safe for logs and storage metadata.
func sanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = sanitizeRegex.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_.")
	if base == "" {
		return "audio.mp3"
	}
	if len(base) > maxNameLength {
		ext := filepath.Ext(base)
		base = base[:maxNameLength-len(ext)] + ext
	}
	return base
}

func hasMP3Extension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".mp3")
}

// looksLikeMP3 checks for an ID3 tag or an MPEG audio frame sync.
func looksLikeMP3(r *bufio.Reader) bool {
	head, err := r.Peek(3)
	if err != nil || len(head) < 2 {
		return false
	}
	if len(head) == 3 && string(head) == "ID3" {
		return true
	}
	return head[0] == 0xFF && head[1]&0xE0 == 0xE0
}
