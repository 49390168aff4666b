// Package folder_tools provides MCP tools for Outlook mail folders.
//
// Tools:
//   - list_folders: list top-level or child folders
//   - create_folder: create a mail folder (write mode only)
package folder_tools
