package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"outlookmcp/internal/instrumentation"
	"outlookmcp/internal/logging"
	"outlookmcp/internal/server"
)

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with metrics and audit logging.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return instrumented(toolName, "", "", sc, handler)
}

// InstrumentedToolHandlerWithOperation is like InstrumentedToolHandler but
// tags the audit record with the Graph domain and operation the tool maps to.
// Graph API metrics themselves are recorded by the Graph client, not here.
func InstrumentedToolHandlerWithOperation(toolName, domain, operation string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return instrumented(toolName, domain, operation, sc, handler)
}

func instrumented(toolName, domain, operation string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		audit := sc.Audit()
		if metrics == nil && audit == nil {
			return handler(ctx, request)
		}

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).WithSpanContext(ctx)
		if domain != "" {
			invocation.WithGraphOperation(domain, operation)
		}

		userID := GetUserIDFromArgs(request.GetArguments())
		invocation.WithUser(userID)

		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
			if err != nil {
				invocation.CompleteWithError(err)
			} else {
				invocation.Complete(false, nil)
			}
		} else {
			invocation.CompleteSuccess()
		}

		if metrics != nil {
			metrics.RecordToolInvocation(ctx, toolName, status, logging.AnonymizeUser(userID), duration)
		}
		if audit != nil {
			audit.LogToolInvocation(invocation)
		}

		return result, err
	}
}
