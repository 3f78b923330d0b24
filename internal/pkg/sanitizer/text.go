package sanitizer

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// maxTextPasses bounds the re-sanitizing loop; entity-encoded markup needs one
// extra pass per level of encoding.
const maxTextPasses = 8

var (
	strictPolicy *bluemonday.Policy
	initOnce     sync.Once
)

func initPolicies() {
	initOnce.Do(func() {
		// StrictPolicy strips ALL HTML and drops script/style/iframe content.
		strictPolicy = bluemonday.StrictPolicy()
	})
}

// Text strips all markup from s and returns plain text.
//
// Entities the policy re-encodes are decoded back and surrounding whitespace
// is trimmed. Text(Text(s)) == Text(s).
func Text(s string) string {
	initPolicies()

	if out, ok := settle(s); ok {
		return out
	}

	// Too many levels of encoding: with no tag or entity left to peel the
	// next settle reaches its fixed point at once.
	out, _ := settle(strings.NewReplacer("<", "", ">", "", "&", "").Replace(s))
	return out
}

// settle sanitizes s until a pass leaves it unchanged. ok is false when
// maxTextPasses ran out first.
func settle(s string) (out string, ok bool) {
	out = strings.TrimSpace(s)
	for range maxTextPasses {
		next := strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(out)))
		if next == out {
			return out, true
		}
		out = next
	}
	return out, false
}
