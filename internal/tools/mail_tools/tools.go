package mail_tools

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

const defaultListLimit = 10

// RegisterMailTools registers the mailbox tools with the MCP server.
// Mutating tools are skipped in read-only mode.
func RegisterMailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listTool := mcp.NewTool("list_messages",
		mcp.WithDescription("List messages in a mail folder, newest first."),
		mcp.WithString("userId",
			mcp.Description("Account to act on (default: the sole signed-in account)"),
		),
		mcp.WithString("folderId",
			mcp.Description("Folder id or well-known name like 'inbox' or 'sentitems' (default: inbox)"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of messages to return (default: 10)"),
		),
		mcp.WithString("filter",
			mcp.Description("OData filter expression, e.g. 'isRead eq false'"),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandlerWithOperation(
		"list_messages", instrumentation.DomainMail, instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListMessages(ctx, request, sc)
		}))

	readTool := mcp.NewTool("read_message",
		mcp.WithDescription("Read a single message including its body."),
		mcp.WithString("userId",
			mcp.Description("Account to act on (default: the sole signed-in account)"),
		),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("The id of the message to read"),
		),
	)
	s.AddTool(readTool, common.InstrumentedToolHandlerWithOperation(
		"read_message", instrumentation.DomainMail, instrumentation.OperationGet, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleReadMessage(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	sendTool := mcp.NewTool("send_message",
		mcp.WithDescription("Send an email message."),
		mcp.WithString("userId",
			mcp.Description("Account to send from (default: the sole signed-in account)"),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Comma-separated recipient addresses"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Message subject"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Message body (plain text)"),
		),
		mcp.WithString("cc",
			mcp.Description("Comma-separated CC addresses"),
		),
	)
	s.AddTool(sendTool, common.InstrumentedToolHandlerWithOperation(
		"send_message", instrumentation.DomainMail, instrumentation.OperationSend, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSendMessage(ctx, request, sc)
		}))

	moveTool := mcp.NewTool("move_messages",
		mcp.WithDescription("Move one or more messages to another folder."),
		mcp.WithString("userId",
			mcp.Description("Account to act on (default: the sole signed-in account)"),
		),
		mcp.WithString("messageIds",
			mcp.Required(),
			mcp.Description("Comma-separated message ids to move"),
		),
		mcp.WithString("destinationFolderId",
			mcp.Required(),
			mcp.Description("Target folder id or well-known name"),
		),
	)
	s.AddTool(moveTool, common.InstrumentedToolHandlerWithOperation(
		"move_messages", instrumentation.DomainMail, instrumentation.OperationMove, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleMoveMessages(ctx, request, sc)
		}))

	return nil
}

// clientForRequest resolves the user id argument and returns the user's Graph
// client, or a tool error result.
func clientForRequest(sc *server.ServerContext, args map[string]interface{}) (*graph.Client, *mcp.CallToolResult) {
	userID := common.GetUserIDFromArgs(args)
	resolved, errResult := common.ResolveUserID(sc, userID)
	if errResult != nil {
		return nil, errResult
	}
	return sc.GraphClientForUser(resolved), nil
}

// renderGraphError maps Graph client failures to tool errors, turning the
// not-authenticated case into sign-in instructions.
func renderGraphError(err error, op string) *mcp.CallToolResult {
	var notAuth *graph.NotAuthenticatedError
	if errors.As(err, &notAuth) {
		return common.NotAuthenticatedResult(notAuth.UserID)
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", op, err))
}

func handleListMessages(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	client, errResult := clientForRequest(sc, args)
	if errResult != nil {
		return errResult, nil
	}

	folderID := "inbox"
	if v, ok := args["folderId"].(string); ok && v != "" {
		folderID = v
	}

	maxResults := defaultListLimit
	if v, ok := args["maxResults"].(float64); ok && v > 0 {
		maxResults = int(v)
	}

	opts := graph.ListOptions{
		Top:     maxResults,
		OrderBy: "receivedDateTime desc",
		Select:  []string{"id", "subject", "from", "receivedDateTime", "isRead", "bodyPreview", "hasAttachments"},
	}
	if v, ok := args["filter"].(string); ok && v != "" {
		opts.Filter = v
	}

	messages, err := client.ListMessages(ctx, folderID, opts)
	if err != nil {
		return renderGraphError(err, "list messages"), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText("No messages found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d message(s):\n", len(messages))
	for i, m := range messages {
		from := ""
		if m.From != nil {
			from = m.From.EmailAddress.Address
		}
		read := " "
		if !m.IsRead {
			read = "*"
		}
		fmt.Fprintf(&sb, "%d.%s [%s] %s: %s (id: %s)\n", i+1, read, m.ReceivedDateTime, from, m.Subject, m.ID)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func handleReadMessage(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	messageID, ok := args["messageId"].(string)
	if !ok || messageID == "" {
		return mcp.NewToolResultError("messageId is required"), nil
	}

	client, errResult := clientForRequest(sc, args)
	if errResult != nil {
		return errResult, nil
	}

	msg, err := client.GetMessage(ctx, messageID)
	if err != nil {
		return renderGraphError(err, "read message"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Subject: %s\n", msg.Subject)
	if msg.From != nil {
		fmt.Fprintf(&sb, "From: %s\n", msg.From.EmailAddress.Address)
	}
	for _, r := range msg.ToRecipients {
		fmt.Fprintf(&sb, "To: %s\n", r.EmailAddress.Address)
	}
	fmt.Fprintf(&sb, "Received: %s\n\n", msg.ReceivedDateTime)
	if msg.Body != nil {
		sb.WriteString(msg.Body.Content)
	} else {
		sb.WriteString(msg.BodyPreview)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func handleSendMessage(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	to, ok := args["to"].(string)
	if !ok || to == "" {
		return mcp.NewToolResultError("to is required"), nil
	}
	subject, ok := args["subject"].(string)
	if !ok || subject == "" {
		return mcp.NewToolResultError("subject is required"), nil
	}
	body, ok := args["body"].(string)
	if !ok || body == "" {
		return mcp.NewToolResultError("body is required"), nil
	}

	client, errResult := clientForRequest(sc, args)
	if errResult != nil {
		return errResult, nil
	}

	msg := graph.Message{
		Subject:      subject,
		Body:         &graph.ItemBody{ContentType: "text", Content: body},
		ToRecipients: parseRecipients(to),
	}
	if cc, ok := args["cc"].(string); ok && cc != "" {
		msg.CcRecipients = parseRecipients(cc)
	}

	err := client.SendMessage(ctx, graph.SendMessageRequest{Message: msg, SaveToSentItems: true})
	if err != nil {
		return renderGraphError(err, "send message"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Message %q sent.", subject)), nil
}

func handleMoveMessages(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	idsArg, ok := args["messageIds"].(string)
	if !ok || idsArg == "" {
		return mcp.NewToolResultError("messageIds is required"), nil
	}
	destination, ok := args["destinationFolderId"].(string)
	if !ok || destination == "" {
		return mcp.NewToolResultError("destinationFolderId is required"), nil
	}

	client, errResult := clientForRequest(sc, args)
	if errResult != nil {
		return errResult, nil
	}

	ids := splitList(idsArg)
	moved := 0
	var failures []string
	for _, id := range ids {
		if _, err := client.MoveMessage(ctx, id, destination); err != nil {
			var notAuth *graph.NotAuthenticatedError
			if errors.As(err, &notAuth) {
				return common.NotAuthenticatedResult(notAuth.UserID), nil
			}
			failures = append(failures, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		moved++
	}

	if len(failures) > 0 {
		return mcp.NewToolResultError(fmt.Sprintf(
			"Moved %d of %d message(s); failures:\n%s", moved, len(ids), strings.Join(failures, "\n"))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Moved %d message(s) to %s.", moved, destination)), nil
}

func parseRecipients(list string) []graph.Recipient {
	var recipients []graph.Recipient
	for _, addr := range splitList(list) {
		recipients = append(recipients, graph.Recipient{
			EmailAddress: graph.EmailAddress{Address: addr},
		})
	}
	return recipients
}

func splitList(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
