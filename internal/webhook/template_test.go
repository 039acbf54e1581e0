package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var payload any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload
}

func TestRenderResolvesNestedPaths(t *testing.T) {
	payload := decode(t, `{
		"repository": {"full_name": "acme/website"},
		"commits": [
			{"message": "fix login"},
			{"message": "bump deps"}
		],
		"count": 2,
		"forced": false
	}`)

	out := Render(
		"New push to {{payload.repository.full_name}}: {{payload.commits.0.message}} ({{payload.count}} commits, forced={{payload.forced}})",
		payload)
	assert.Equal(t, "New push to acme/website: fix login (2 commits, forced=false)", out)
}

func TestRenderLeavesUnresolvedPlaceholdersLiteral(t *testing.T) {
	payload := decode(t, `{"a": {"b": "x"}}`)

	cases := []string{
		"{{payload.a.missing}}",
		"{{payload.a.b.too.deep}}",
		"{{payload.items.5}}",
		"{{notpayload.a}}",
		"{{payload.a.b",
	}
	for _, template := range cases {
		assert.Equal(t, template, Render(template, payload), template)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	payload := decode(t, `{"a": [1, {"b": "two"}], "c": null}`)
	template := "a0={{payload.a.0}} a1b={{payload.a.1.b}} c={{payload.c}} d={{payload.d}}"

	first := Render(template, payload)
	second := Render(template, payload)
	assert.Equal(t, first, second)
	assert.Equal(t, "a0=1 a1b=two c=null d={{payload.d}}", first)
}

func TestRenderSinglePassDoesNotRescanSubstitutions(t *testing.T) {
	payload := decode(t, `{"evil": "{{payload.evil}}"}`)

	out := Render("{{payload.evil}}", payload)
	assert.Equal(t, "{{payload.evil}}", out)
}

func TestRenderObjectsAsCompactJSON(t *testing.T) {
	payload := decode(t, `{"obj": {"k": 1}}`)

	out := Render("{{payload.obj}}", payload)
	assert.JSONEq(t, `{"k":1}`, out)
}

func TestRenderNilPayload(t *testing.T) {
	assert.Equal(t, "{{payload.a}}", Render("{{payload.a}}", nil))
	assert.Equal(t, "plain text", Render("plain text", nil))
}
