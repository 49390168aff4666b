// Package auth_tools provides MCP tools for the Microsoft account lifecycle.
//
// Tools:
//   - authenticate: start a browser sign-in flow via the companion
//     authorization server and return the URL to open
//   - check_auth_status: report whether a sign-in has completed
//   - list_accounts: list the signed-in accounts in the token store
//   - revoke_authentication: remove a stored account's tokens
//
// Revocation enforces the ambiguous-user rule: with several accounts stored,
// the caller must name the account explicitly instead of relying on the
// "default" sentinel.
package auth_tools
