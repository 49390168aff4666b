// Package mail_tools provides MCP tools for the Outlook mailbox.
//
// Tools:
//   - list_messages: list messages in a folder with paging and filtering
//   - read_message: read a single message including its body
//   - send_message: send a new message (write mode only)
//   - move_messages: move messages to another folder (write mode only)
//
// Every tool takes an optional userId; the "default" shorthand resolves to
// the sole signed-in account and is rejected when several are stored.
package mail_tools
