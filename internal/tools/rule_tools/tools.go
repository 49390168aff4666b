package rule_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"outlookmcp/internal/graph"
	"outlookmcp/internal/instrumentation"
	"outlookmcp/internal/server"
	"outlookmcp/internal/tools/common"
)

// RegisterRuleTools registers the inbox rule tools with the MCP server.
// create_rule is skipped in read-only mode.
func RegisterRuleTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listTool := mcp.NewTool("list_rules",
		mcp.WithDescription("List the inbox message rules."),
		mcp.WithString("userId",
			mcp.Description("Account to act on (default: the sole signed-in account)"),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandlerWithOperation(
		"list_rules", instrumentation.DomainRule, instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListRules(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	createTool := mcp.NewTool("create_rule",
		mcp.WithDescription("Create an inbox rule that files matching messages into a folder. At least one condition is required."),
		mcp.WithString("userId",
			mcp.Description("Account to act on (default: the sole signed-in account)"),
		),
		mcp.WithString("displayName",
			mcp.Required(),
			mcp.Description("Name of the rule"),
		),
		mcp.WithString("senderContains",
			mcp.Description("Match messages whose sender contains this text"),
		),
		mcp.WithString("subjectContains",
			mcp.Description("Match messages whose subject contains this text"),
		),
		mcp.WithString("moveToFolderId",
			mcp.Required(),
			mcp.Description("Folder id to move matching messages into"),
		),
		mcp.WithBoolean("markAsRead",
			mcp.Description("Also mark matching messages as read"),
		),
	)
	s.AddTool(createTool, common.InstrumentedToolHandlerWithOperation(
		"create_rule", instrumentation.DomainRule, instrumentation.OperationCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateRule(ctx, request, sc)
		}))

	return nil
}

func clientForRequest(sc *server.ServerContext, args map[string]interface{}) (*graph.Client, *mcp.CallToolResult) {
	userID := common.GetUserIDFromArgs(args)
	resolved, errResult := common.ResolveUserID(sc, userID)
	if errResult != nil {
		return nil, errResult
	}
	return sc.GraphClientForUser(resolved), nil
}

func renderGraphError(err error, op string) *mcp.CallToolResult {
	var notAuth *graph.NotAuthenticatedError
	if errors.As(err, &notAuth) {
		return common.NotAuthenticatedResult(notAuth.UserID)
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", op, err))
}

func handleListRules(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	client, errResult := clientForRequest(sc, args)
	if errResult != nil {
		return errResult, nil
	}

	rules, err := client.ListRules(ctx)
	if err != nil {
		return renderGraphError(err, "list rules"), nil
	}

	if len(rules) == 0 {
		return mcp.NewToolResultText("No inbox rules found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d rule(s):\n", len(rules))
	for i, r := range rules {
		state := "enabled"
		if !r.IsEnabled {
			state = "disabled"
		}
		fmt.Fprintf(&sb, "%d. %s [%s] (id: %s)\n", i+1, r.DisplayName, state, r.ID)
		if r.Conditions != nil {
			if len(r.Conditions.SenderContains) > 0 {
				fmt.Fprintf(&sb, "   sender contains: %s\n", strings.Join(r.Conditions.SenderContains, ", "))
			}
			if len(r.Conditions.SubjectContains) > 0 {
				fmt.Fprintf(&sb, "   subject contains: %s\n", strings.Join(r.Conditions.SubjectContains, ", "))
			}
		}
		if r.Actions != nil && r.Actions.MoveToFolder != "" {
			fmt.Fprintf(&sb, "   moves to folder: %s\n", r.Actions.MoveToFolder)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func handleCreateRule(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	displayName, ok := args["displayName"].(string)
	if !ok || displayName == "" {
		return mcp.NewToolResultError("displayName is required"), nil
	}
	moveTo, ok := args["moveToFolderId"].(string)
	if !ok || moveTo == "" {
		return mcp.NewToolResultError("moveToFolderId is required"), nil
	}

	conditions := &graph.RulePredicates{}
	if v, ok := args["senderContains"].(string); ok && v != "" {
		conditions.SenderContains = []string{v}
	}
	if v, ok := args["subjectContains"].(string); ok && v != "" {
		conditions.SubjectContains = []string{v}
	}
	if len(conditions.SenderContains) == 0 && len(conditions.SubjectContains) == 0 {
		return mcp.NewToolResultError("at least one of senderContains or subjectContains is required"), nil
	}

	actions := &graph.RuleActions{MoveToFolder: moveTo}
	if v, ok := args["markAsRead"].(bool); ok && v {
		actions.MarkAsRead = &v
	}

	client, errResult := clientForRequest(sc, args)
	if errResult != nil {
		return errResult, nil
	}

	created, err := client.CreateRule(ctx, graph.MessageRule{
		DisplayName: displayName,
		IsEnabled:   true,
		Conditions:  conditions,
		Actions:     actions,
	})
	if err != nil {
		return renderGraphError(err, "create rule"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Rule %q created (id: %s).", created.DisplayName, created.ID)), nil
}
