package respond

import (
	"regexp"
)

var (
	// Discord-style webhook URLs carry the secret token in the path.
	webhookTokenPattern = regexp.MustCompile(`(/api/webhooks/[0-9]+/)[a-zA-Z0-9-_]+`)

	// Database passwords inside a DSN.
	dbPasswordPattern = regexp.MustCompile(`://([^:/]+):([^@]+)@`)
)

// SanitizeError returns the error message with credentials masked. Errors
// from the webhook transport and the database layer routinely embed the URL
// or DSN they failed against.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	msg = webhookTokenPattern.ReplaceAllString(msg, "$1****")
	msg = dbPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	return msg
}
