package classify

import "regexp"

// Secrets must never leave the classifier in a message, regardless of what
// the caller stuffed into the raw error.
var (
	kvSecretRe  = regexp.MustCompile(`(?i)\b(password|passwd|secret|token|api[_-]?key|authorization)\s*[=:]\s*\S+`)
	bearerRe    = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`)
	urlCredsRe  = regexp.MustCompile(`://[^/@\s]+@`)
	basicAuthRe = regexp.MustCompile(`(?i)\bbasic\s+[A-Za-z0-9+/=]{8,}`)
)

// Scrub removes credential material from an error message. Scheme-prefixed
// tokens go first so the key=value pass cannot split them.
func Scrub(msg string) string {
	msg = bearerRe.ReplaceAllString(msg, "Bearer [REDACTED]")
	msg = basicAuthRe.ReplaceAllString(msg, "Basic [REDACTED]")
	msg = kvSecretRe.ReplaceAllString(msg, "$1=[REDACTED]")
	msg = urlCredsRe.ReplaceAllString(msg, "://[REDACTED]@")
	return msg
}
