package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/vietddude/vinspect/internal/core/domain"
)

// Normalization replaces variable data with placeholders so that two
// occurrences of "the same" error hash identically.
var (
	uuidRe   = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	hexRe    = regexp.MustCompile(`\b(0x)?[0-9a-fA-F]{8,}\b`)
	numberRe = regexp.MustCompile(`\d+`)
	quotedRe = regexp.MustCompile(`'[^']*'|"[^"]*"`)
)

// NormalizeMessage reduces a message to its template form.
func NormalizeMessage(msg string) string {
	msg = uuidRe.ReplaceAllString(msg, "<uuid>")
	msg = quotedRe.ReplaceAllString(msg, "<q>")
	msg = hexRe.ReplaceAllString(msg, "<hex>")
	msg = numberRe.ReplaceAllString(msg, "<n>")
	return msg
}

// Fingerprint returns a stable identifier for (category, message template,
// originating component).
func Fingerprint(category domain.ErrorCategory, msg, component string) string {
	h := sha256.New()
	h.Write([]byte(category))
	h.Write([]byte{'|'})
	h.Write([]byte(NormalizeMessage(msg)))
	h.Write([]byte{'|'})
	h.Write([]byte(component))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
