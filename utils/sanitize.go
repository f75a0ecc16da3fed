package utils

import "github.com/microcosm-cc/bluemonday"

// Profile fields are plain text, so strip all markup instead of allowing UGC HTML.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize cleans user-supplied text to prevent stored XSS.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
