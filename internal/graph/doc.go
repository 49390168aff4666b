// Package graph provides a thin REST client for the Microsoft Graph API.
//
// The client resolves a bearer token through a CredentialSource on every
// request, so token refresh and expiry handling stay in the auth package. It
// translates the Graph error envelope into typed errors and offers OData
// query helpers for the list endpoints. Business semantics live in the tool
// handlers; this package only moves requests and responses.
package graph
