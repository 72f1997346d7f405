package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tmplBag() map[string]any {
	return map[string]any{
		"trigger": map[string]any{
			"name":  "north station",
			"price": 9.5,
			"meta":  map[string]any{"zone": "A1"},
		},
		"workflow": map[string]any{"name": "alerts"},
	}
}

func TestResolveStringSubstitution(t *testing.T) {
	out, err := resolveString("station {{trigger.name}} in zone {{trigger.meta.zone}}", tmplBag())
	require.NoError(t, err)
	assert.Equal(t, "station north station in zone A1", out)
}

func TestResolveStringSingleTokenKeepsType(t *testing.T) {
	out, err := resolveString("{{trigger.price}}", tmplBag())
	require.NoError(t, err)
	assert.Equal(t, 9.5, out)

	out, err = resolveString("{{trigger.meta}}", tmplBag())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"zone": "A1"}, out)
}

func TestResolveStringUnresolvedStaysIntact(t *testing.T) {
	out, err := resolveString("value: {{trigger.missing}}", tmplBag())
	require.NoError(t, err)
	assert.Equal(t, "value: {{trigger.missing}}", out)

	out, err = resolveString("{{trigger.missing}}", tmplBag())
	require.NoError(t, err)
	assert.Equal(t, "{{trigger.missing}}", out)
}

func TestResolveStringMalformedToken(t *testing.T) {
	for _, s := range []string{
		"{{}}",
		"{{trigger..name}}",
		"{{trigger.name!}}",
		"{{1bad}}",
		"{{a b}}",
	} {
		_, err := resolveString(s, tmplBag())
		assert.Error(t, err, s)
	}
}

func TestResolveStringNoTokens(t *testing.T) {
	out, err := resolveString("plain text", tmplBag())
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestResolveAnyNested(t *testing.T) {
	out, err := resolveAny(map[string]any{
		"title": "alert for {{trigger.name}}",
		"tags":  []any{"{{workflow.name}}", "static"},
		"count": 3,
	}, tmplBag())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title": "alert for north station",
		"tags":  []any{"alerts", "static"},
		"count": 3,
	}, out)
}

func TestLookupPathStopsAtNonMap(t *testing.T) {
	_, ok := lookupPath(tmplBag(), "trigger.name.deeper")
	assert.False(t, ok)
}
