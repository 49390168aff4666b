// Package common holds helpers shared by the MCP tool packages: user id
// argument handling with "default" sentinel resolution, and handler wrappers
// that add metrics and audit logging around tool invocations.
package common
