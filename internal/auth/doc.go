// Package auth manages OAuth2 credentials for Microsoft Graph access.
//
// It owns the durable token cache (a JSON file mapping user ids to token
// records), exchanges refresh tokens with the Microsoft identity platform,
// and decides for every tool call which user's credentials apply and whether
// they are usable without re-authentication.
//
// The browser-facing part of the OAuth flow is delegated to a companion
// authorization server process; this package only starts flows against it and
// observes completion through the shared token cache.
package auth
