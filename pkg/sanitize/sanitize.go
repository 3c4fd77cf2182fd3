package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text strips markup from user free text (notes, descriptions, claims).
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
