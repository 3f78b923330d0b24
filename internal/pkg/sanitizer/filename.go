package sanitizer

import (
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	maxFilenameBytes = 255
	// FallbackFilename replaces names that sanitize to nothing.
	FallbackFilename = "attachment"
)

var reWindowsReserved = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)

// Filename returns a filesystem-safe rendition of a client-supplied name.
//
// Path components, separators, control characters and characters reserved on
// common filesystems are removed. Reserved device names and dot names become
// FallbackFilename, and the result fits in 255 bytes.
func Filename(name string) string {
	name = norm.NFC.String(name)
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		switch r {
		case '/', '?', '<', '>', ':', '*', '|', '"':
			return -1
		}
		return r
	}, name)

	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, ". ")
	name = truncateBytes(name, maxFilenameBytes)
	name = strings.TrimRight(name, ". ")

	if name == "" || reWindowsReserved.MatchString(name) {
		return FallbackFilename
	}

	return name
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
