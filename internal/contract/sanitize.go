package contract

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var ugc = bluemonday.UGCPolicy()

// Sanitize strips unsafe markup from user supplied rich text.
func Sanitize(s string) string {
	return strings.TrimSpace(ugc.Sanitize(s))
}
