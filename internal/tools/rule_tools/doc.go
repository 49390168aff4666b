// Package rule_tools provides MCP tools for Outlook inbox rules.
//
// Tools:
//   - list_rules: list the inbox message rules
//   - create_rule: create an inbox rule (write mode only)
package rule_tools
