package logger

import "strings"

// RedactEmail masks an address for safe logging, keeping at most the first
// two characters of the local part: "ada.l@example.com" becomes
// "ad***@example.com". Anything that does not look like an address is fully
// masked.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
