package auth

import (
	"strings"
)

// DefaultScopes is the full Microsoft Graph scope set requested during
// authentication and on every refresh. Refreshing always requests the
// complete set rather than a narrowed subset; a token refreshed for a narrow
// purpose would otherwise lack scopes needed by a different tool later in the
// same session and force a second authentication.
var DefaultScopes = []string{
	// OpenID Connect scopes (required for user identification and refresh tokens)
	"openid",
	"profile",
	"offline_access",

	"User.Read",

	// Mail scopes
	"Mail.Read",
	"Mail.ReadWrite",
	"Mail.Send",

	// Calendar scopes
	"Calendars.Read",
	"Calendars.ReadWrite",

	// Mailbox settings (folders, inbox rules)
	"MailboxSettings.Read",
	"MailboxSettings.ReadWrite",
}

// Minimal scope subsets per calling domain. Each tool handler states which
// subset its resolution requires; resolution upgrades the stored token when
// the granted scopes do not cover the subset.
var (
	MailReadScopes     = []string{"Mail.Read"}
	MailWriteScopes    = []string{"Mail.ReadWrite", "Mail.Send"}
	CalendarReadScopes = []string{"Calendars.Read"}
	CalendarWriteScope = []string{"Calendars.ReadWrite"}
	FolderScopes       = []string{"Mail.ReadWrite"}
	RuleScopes         = []string{"MailboxSettings.ReadWrite"}
)

// ScopesCover reports whether the space-separated granted scope string covers
// every required scope. Comparison is exact per scope name; Graph returns
// scopes in the short form they were requested in.
func ScopesCover(granted string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool)
	for _, s := range strings.Fields(granted) {
		have[s] = true
	}
	for _, s := range required {
		if !have[s] {
			return false
		}
	}
	return true
}
