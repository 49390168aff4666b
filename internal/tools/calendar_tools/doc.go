// Package calendar_tools provides MCP tools for the Outlook calendar.
//
// Tools:
//   - list_events: list events in a time window, expanding recurrences
//   - create_event: create a calendar event (write mode only)
package calendar_tools
