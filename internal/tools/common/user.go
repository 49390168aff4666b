package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"outlookmcp/internal/auth"
	"outlookmcp/internal/server"
)

// GetUserIDFromArgs extracts the user id from request arguments, defaulting
// to the "default" sentinel when absent.
func GetUserIDFromArgs(args map[string]interface{}) string {
	if userVal, ok := args["userId"].(string); ok && userVal != "" {
		return userVal
	}
	return auth.DefaultUserID
}

// ResolveUserID maps the user id argument to a concrete stored user. The
// "default" sentinel resolves to the sole stored user; with several users the
// caller must name one explicitly, and with none the user is told to
// authenticate. The second return value is non-nil exactly when resolution
// failed and carries the tool error to return.
func ResolveUserID(sc *server.ServerContext, userID string) (string, *mcp.CallToolResult) {
	resolved, err := sc.Resolver().ResolveUserID(userID)
	if err != nil {
		var ambiguous *auth.AmbiguousUserError
		if errors.As(err, &ambiguous) {
			return "", mcp.NewToolResultError(fmt.Sprintf(
				"Multiple accounts are signed in; pass userId explicitly. Signed-in accounts: %s",
				strings.Join(ambiguous.Users, ", ")))
		}
		return "", mcp.NewToolResultError(fmt.Sprintf("Failed to resolve user: %v", err))
	}
	if resolved == "" {
		return "", NotAuthenticatedResult(userID)
	}
	return resolved, nil
}

// NotAuthenticatedResult renders the standard "please authenticate" tool
// error.
func NotAuthenticatedResult(userID string) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf(
		"No Microsoft account is authenticated for %q. Run the authenticate tool, open the returned URL in a browser, sign in, then check progress with check_auth_status.",
		userID))
}
