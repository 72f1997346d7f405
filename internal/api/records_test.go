package api

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapform/internal/query"
)

func TestParseListParamsDefaults(t *testing.T) {
	opts := parseListParams(url.Values{})
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
	assert.Empty(t, opts.Order)
	assert.Empty(t, opts.Filters)
	assert.False(t, opts.IncludeDeleted)
}

func TestParseListParamsLimitClamp(t *testing.T) {
	opts := parseListParams(url.Values{"limit": {"5000"}})
	assert.Equal(t, 50, opts.Limit) // за пределами капа — дефолт

	opts = parseListParams(url.Values{"_limit": {"200"}})
	assert.Equal(t, 200, opts.Limit)

	opts = parseListParams(url.Values{"limit": {"abc"}})
	assert.Equal(t, 50, opts.Limit)
}

func TestParseListParamsSort(t *testing.T) {
	opts := parseListParams(url.Values{"sort": {"-price, name"}})
	require.Len(t, opts.Order, 2)
	assert.Equal(t, query.OrderKey{Field: "price", Desc: true}, opts.Order[0])
	assert.Equal(t, query.OrderKey{Field: "name", Desc: false}, opts.Order[1])
}

func TestParseListParamsFilters(t *testing.T) {
	opts := parseListParams(url.Values{
		"status": {"active"},
		"limit":  {"10"},
		"sort":   {"name"},
		"empty":  {"  "},
	})
	require.Len(t, opts.Filters, 1)
	assert.Equal(t, query.Filter{Field: "status", Op: query.OpEq, Value: "active"}, opts.Filters[0])
}

func TestParseListParamsIncludeDeleted(t *testing.T) {
	opts := parseListParams(url.Values{"include_deleted": {"true"}})
	assert.True(t, opts.IncludeDeleted)

	opts = parseListParams(url.Values{"include_deleted": {"yes"}})
	assert.False(t, opts.IncludeDeleted)
}
