package calendar_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"outlookmcp/internal/graph"
	"outlookmcp/internal/instrumentation"
	"outlookmcp/internal/server"
	"outlookmcp/internal/tools/common"
)

const defaultEventLimit = 10

// RegisterCalendarTools registers the calendar tools with the MCP server.
// create_event is skipped in read-only mode.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listTool := mcp.NewTool("list_events",
		mcp.WithDescription("List calendar events. When both timeMin and timeMax are given, recurring events are expanded into their occurrences."),
		mcp.WithString("userId",
			mcp.Description("Account to act on (default: the sole signed-in account)"),
		),
		mcp.WithString("timeMin",
			mcp.Description("Window start, RFC 3339 (e.g. 2026-08-27T00:00:00Z)"),
		),
		mcp.WithString("timeMax",
			mcp.Description("Window end, RFC 3339"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of events to return (default: 10)"),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandlerWithOperation(
		"list_events", instrumentation.DomainCalendar, instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	createTool := mcp.NewTool("create_event",
		mcp.WithDescription("Create a calendar event."),
		mcp.WithString("userId",
			mcp.Description("Account to act on (default: the sole signed-in account)"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Event subject"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Event start, RFC 3339"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("Event end, RFC 3339"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated attendee addresses"),
		),
		mcp.WithString("body",
			mcp.Description("Event description (plain text)"),
		),
	)
	s.AddTool(createTool, common.InstrumentedToolHandlerWithOperation(
		"create_event", instrumentation.DomainCalendar, instrumentation.OperationCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
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

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var timeMin, timeMax time.Time
	if v, ok := args["timeMin"].(string); ok && v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid timeMin: %v", err)), nil
		}
		timeMin = parsed
	}
	if v, ok := args["timeMax"].(string); ok && v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid timeMax: %v", err)), nil
		}
		timeMax = parsed
	}
	if !timeMin.IsZero() && !timeMax.IsZero() && !timeMax.After(timeMin) {
		return mcp.NewToolResultError("timeMax must be after timeMin"), nil
	}

	client, errResult := clientForRequest(sc, args)
	if errResult != nil {
		return errResult, nil
	}

	maxResults := defaultEventLimit
	if v, ok := args["maxResults"].(float64); ok && v > 0 {
		maxResults = int(v)
	}

	opts := graph.ListOptions{
		Top:     maxResults,
		OrderBy: "start/dateTime",
		Select:  []string{"id", "subject", "start", "end", "location", "organizer", "isAllDay"},
	}

	events, err := client.ListEvents(ctx, timeMin, timeMax, opts)
	if err != nil {
		return renderGraphError(err, "list events"), nil
	}

	if len(events) == 0 {
		return mcp.NewToolResultText("No events found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d event(s):\n", len(events))
	for i, e := range events {
		fmt.Fprintf(&sb, "%d. %s", i+1, e.Subject)
		if e.Start != nil && e.End != nil {
			fmt.Fprintf(&sb, " [%s .. %s]", e.Start.DateTime, e.End.DateTime)
		}
		if e.Location != nil && e.Location.DisplayName != "" {
			fmt.Fprintf(&sb, " @ %s", e.Location.DisplayName)
		}
		fmt.Fprintf(&sb, " (id: %s)\n", e.ID)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	subject, ok := args["subject"].(string)
	if !ok || subject == "" {
		return mcp.NewToolResultError("subject is required"), nil
	}
	startArg, ok := args["start"].(string)
	if !ok || startArg == "" {
		return mcp.NewToolResultError("start is required"), nil
	}
	endArg, ok := args["end"].(string)
	if !ok || endArg == "" {
		return mcp.NewToolResultError("end is required"), nil
	}

	start, err := time.Parse(time.RFC3339, startArg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid start: %v", err)), nil
	}
	end, err := time.Parse(time.RFC3339, endArg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid end: %v", err)), nil
	}
	if !end.After(start) {
		return mcp.NewToolResultError("end must be after start"), nil
	}

	client, errResult := clientForRequest(sc, args)
	if errResult != nil {
		return errResult, nil
	}

	event := graph.Event{
		Subject: subject,
		Start:   graphTime(start),
		End:     graphTime(end),
	}
	if v, ok := args["location"].(string); ok && v != "" {
		event.Location = &graph.Location{DisplayName: v}
	}
	if v, ok := args["body"].(string); ok && v != "" {
		event.Body = &graph.ItemBody{ContentType: "text", Content: v}
	}
	if v, ok := args["attendees"].(string); ok && v != "" {
		for _, addr := range strings.Split(v, ",") {
			addr = strings.TrimSpace(addr)
			if addr == "" {
				continue
			}
			event.Attendees = append(event.Attendees, graph.Attendee{
				Type:         "required",
				EmailAddress: graph.EmailAddress{Address: addr},
			})
		}
	}

	created, err := client.CreateEvent(ctx, event)
	if err != nil {
		return renderGraphError(err, "create event"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Event %q created (id: %s).", created.Subject, created.ID)), nil
}

func graphTime(t time.Time) *graph.DateTimeTimeZone {
	return &graph.DateTimeTimeZone{
		DateTime: t.UTC().Format("2006-01-02T15:04:05"),
		TimeZone: "UTC",
	}
}
