package folder_tools

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

// RegisterFolderTools registers the mail folder tools with the MCP server.
// create_folder is skipped in read-only mode.
func RegisterFolderTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listTool := mcp.NewTool("list_folders",
		mcp.WithDescription("List mail folders. Without parentFolderId, lists the top-level folders."),
		mcp.WithString("userId",
			mcp.Description("Account to act on (default: the sole signed-in account)"),
		),
		mcp.WithString("parentFolderId",
			mcp.Description("List the child folders of this folder instead of the top level"),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandlerWithOperation(
		"list_folders", instrumentation.DomainFolder, instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListFolders(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	createTool := mcp.NewTool("create_folder",
		mcp.WithDescription("Create a mail folder."),
		mcp.WithString("userId",
			mcp.Description("Account to act on (default: the sole signed-in account)"),
		),
		mcp.WithString("displayName",
			mcp.Required(),
			mcp.Description("Name of the new folder"),
		),
		mcp.WithString("parentFolderId",
			mcp.Description("Create the folder under this parent instead of the top level"),
		),
	)
	s.AddTool(createTool, common.InstrumentedToolHandlerWithOperation(
		"create_folder", instrumentation.DomainFolder, instrumentation.OperationCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateFolder(ctx, request, sc)
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

func handleListFolders(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	client, errResult := clientForRequest(sc, args)
	if errResult != nil {
		return errResult, nil
	}

	parentID := ""
	if v, ok := args["parentFolderId"].(string); ok {
		parentID = v
	}

	folders, err := client.ListFolders(ctx, parentID, graph.ListOptions{OrderBy: "displayName"})
	if err != nil {
		return renderGraphError(err, "list folders"), nil
	}

	if len(folders) == 0 {
		return mcp.NewToolResultText("No folders found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d folder(s):\n", len(folders))
	for i, f := range folders {
		fmt.Fprintf(&sb, "%d. %s (id: %s, %d unread / %d total", i+1, f.DisplayName, f.ID, f.UnreadItemCount, f.TotalItemCount)
		if f.ChildFolderCount > 0 {
			fmt.Fprintf(&sb, ", %d subfolder(s)", f.ChildFolderCount)
		}
		sb.WriteString(")\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func handleCreateFolder(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	displayName, ok := args["displayName"].(string)
	if !ok || displayName == "" {
		return mcp.NewToolResultError("displayName is required"), nil
	}

	client, errResult := clientForRequest(sc, args)
	if errResult != nil {
		return errResult, nil
	}

	parentID := ""
	if v, ok := args["parentFolderId"].(string); ok {
		parentID = v
	}

	created, err := client.CreateFolder(ctx, displayName, parentID)
	if err != nil {
		return renderGraphError(err, "create folder"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Folder %q created (id: %s).", created.DisplayName, created.ID)), nil
}
