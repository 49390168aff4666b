package auth_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"outlookmcp/internal/auth"
	"outlookmcp/internal/instrumentation"
	"outlookmcp/internal/server"
	"outlookmcp/internal/tools/common"
)

// RegisterAuthTools registers the account lifecycle tools with the MCP server.
func RegisterAuthTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	authenticateTool := mcp.NewTool("authenticate",
		mcp.WithDescription("Start a Microsoft account sign-in flow. Returns a URL to open in a browser; poll check_auth_status afterwards."),
	)
	s.AddTool(authenticateTool, common.InstrumentedToolHandler("authenticate", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAuthenticate(ctx, sc)
		}))

	checkStatusTool := mcp.NewTool("check_auth_status",
		mcp.WithDescription("Check whether a Microsoft account sign-in has completed."),
	)
	s.AddTool(checkStatusTool, common.InstrumentedToolHandler("check_auth_status", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckStatus(ctx, sc)
		}))

	listAccountsTool := mcp.NewTool("list_accounts",
		mcp.WithDescription("List the Microsoft accounts that are signed in."),
	)
	s.AddTool(listAccountsTool, common.InstrumentedToolHandler("list_accounts", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListAccounts(sc)
		}))

	revokeTool := mcp.NewTool("revoke_authentication",
		mcp.WithDescription("Remove a signed-in account's stored tokens. With several accounts signed in, userId must name one explicitly."),
		mcp.WithString("userId",
			mcp.Description("Account to revoke (default: the sole signed-in account)"),
		),
	)
	s.AddTool(revokeTool, common.InstrumentedToolHandler("revoke_authentication", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleRevoke(ctx, request, sc)
		}))

	return nil
}

func handleAuthenticate(ctx context.Context, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	flow, err := sc.Flow().StartFlow(ctx, auth.DefaultScopes)

	if m := sc.Metrics(); m != nil {
		result := instrumentation.ResultSuccess
		if err != nil {
			result = instrumentation.ResultFailure
		}
		m.RecordAuthFlowStarted(ctx, result)
	}
	if a := sc.Audit(); a != nil {
		a.LogAuthEvent("flow_started", auth.DefaultUserID, err == nil, err)
	}

	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Failed to start authentication: %v. Make sure the authorization server is running.", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Authentication started. Open this URL in a browser and sign in:\n\n%s\n\nThen run check_auth_status to confirm the sign-in completed.",
		flow.AuthURL)), nil
}

func handleCheckStatus(ctx context.Context, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	status, err := sc.Flow().CheckStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Failed to check authentication status: %v. Make sure the authorization server is running.", err)), nil
	}

	switch {
	case status.Authenticated:
		return mcp.NewToolResultText(fmt.Sprintf("Authenticated as %s.", status.UserID)), nil
	case status.IsAuthenticating:
		return mcp.NewToolResultText("Sign-in is in progress. Complete it in the browser, then check again."), nil
	default:
		return mcp.NewToolResultText("Not authenticated. Run the authenticate tool to sign in."), nil
	}
}

func handleListAccounts(sc *server.ServerContext) (*mcp.CallToolResult, error) {
	users, err := sc.Store().ListUsers()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list accounts: %v", err)), nil
	}

	if len(users) == 0 {
		return mcp.NewToolResultText("No accounts are signed in. Run the authenticate tool to sign in."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d account(s) signed in:\n", len(users))
	for _, u := range users {
		fmt.Fprintf(&sb, "- %s\n", u)
	}
	if len(users) > 1 {
		sb.WriteString("\nPass userId explicitly to tools; the \"default\" shorthand only works with a single account.")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func handleRevoke(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	userID := common.GetUserIDFromArgs(request.GetArguments())

	resolved, errResult := common.ResolveUserID(sc, userID)
	if errResult != nil {
		return errResult, nil
	}

	removed, err := sc.Store().Delete(resolved)
	if a := sc.Audit(); a != nil {
		a.LogAuthEvent("revoked", resolved, err == nil && removed, err)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to revoke %s: %v", resolved, err)), nil
	}
	if !removed {
		return mcp.NewToolResultText(fmt.Sprintf("No stored tokens for %s; nothing to revoke.", resolved)), nil
	}

	sc.DropGraphClient(resolved)
	return mcp.NewToolResultText(fmt.Sprintf("Revoked authentication for %s.", resolved)), nil
}
