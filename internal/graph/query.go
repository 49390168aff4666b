package graph

import (
	"net/url"
	"strconv"
	"strings"
)

// ListOptions carries OData query options for Graph collection endpoints.
// Zero values are omitted from the query string.
type ListOptions struct {
	// Top limits the number of returned items ($top).
	Top int

	// Filter is an OData filter expression ($filter).
	Filter string

	// Select limits the returned properties ($select).
	Select []string

	// OrderBy sorts the collection ($orderby), e.g. "receivedDateTime desc".
	OrderBy string

	// Search is a free-text search expression ($search). Graph requires the
	// expression to be quoted; the caller passes it unquoted.
	Search string
}

// Values renders the options as URL query parameters.
func (o ListOptions) Values() url.Values {
	q := url.Values{}
	if o.Top > 0 {
		q.Set("$top", strconv.Itoa(o.Top))
	}
	if o.Filter != "" {
		q.Set("$filter", o.Filter)
	}
	if len(o.Select) > 0 {
		q.Set("$select", strings.Join(o.Select, ","))
	}
	if o.OrderBy != "" {
		q.Set("$orderby", o.OrderBy)
	}
	if o.Search != "" {
		q.Set("$search", `"`+o.Search+`"`)
	}
	return q
}
