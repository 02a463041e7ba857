package moderation

import "regexp"

// Pattern-based contact detection is best effort: it catches the common
// leak shapes (long digit runs, email-looking tokens, messaging app names)
// and nothing more. It is a filter, not a security boundary.
var (
	phoneRe = regexp.MustCompile(`\d{10,}`)
	emailRe = regexp.MustCompile(`@[A-Za-z0-9._%+-]+\.[A-Za-z]{2,}`)
	appsRe  = regexp.MustCompile(`(?i)(whatsapp|telegram|signal|viber)`)
)

// ContainsContactInfo reports whether free text carries a phone-like digit
// run (>=10 digits), an email-shaped token, or a messaging app name.
func ContainsContactInfo(text string) bool {
	return phoneRe.MatchString(text) ||
		emailRe.MatchString(text) ||
		appsRe.MatchString(text)
}
