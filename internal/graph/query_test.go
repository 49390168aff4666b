package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListOptions_Values(t *testing.T) {
	tests := []struct {
		name string
		opts ListOptions
		want map[string]string
	}{
		{
			name: "empty options emit nothing",
			opts: ListOptions{},
			want: map[string]string{},
		},
		{
			name: "all options",
			opts: ListOptions{
				Top:     25,
				Filter:  "isRead eq false",
				Select:  []string{"id", "subject"},
				OrderBy: "receivedDateTime desc",
			},
			want: map[string]string{
				"$top":     "25",
				"$filter":  "isRead eq false",
				"$select":  "id,subject",
				"$orderby": "receivedDateTime desc",
			},
		},
		{
			name: "search is quoted",
			opts: ListOptions{Search: "from:alice"},
			want: map[string]string{"$search": `"from:alice"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.opts.Values()
			assert.Len(t, got, len(tt.want))
			for k, v := range tt.want {
				assert.Equal(t, v, got.Get(k), "param %s", k)
			}
		})
	}
}
