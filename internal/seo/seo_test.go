package seo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/fair-web/fairapi"
)

func TestValidateJSONLD(t *testing.T) {
	out, err := ValidateJSONLD([]byte(`{
		"@context": "https://schema.org",
		"@type": "Organization",
		"name": "THE WEDDING"
	}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"@context":"https://schema.org","@type":"Organization","name":"THE WEDDING"}`, string(out))
	assert.NotContains(t, string(out), "\n")

	_, err = ValidateJSONLD([]byte(`[{"@context":"https://schema.org","@graph":[{"@type":"WebSite"}]}]`))
	assert.NoError(t, err)
}

func TestValidateJSONLDRejects(t *testing.T) {
	_, err := ValidateJSONLD([]byte(`{"@context": `))
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = ValidateJSONLD([]byte(`{"@type":"Organization"}`))
	assert.ErrorIs(t, err, ErrSchema)

	_, err = ValidateJSONLD([]byte(`{"@context":"https://schema.org"}`))
	assert.ErrorIs(t, err, ErrSchema)

	_, err = ValidateJSONLD([]byte(`"just a string"`))
	assert.ErrorIs(t, err, ErrSchema)

	_, err = ValidateJSONLD([]byte(`[]`))
	assert.ErrorIs(t, err, ErrSchema)
}

func TestPretty(t *testing.T) {
	assert.Equal(t, "{\n \"a\": 1\n}", Pretty(`{"a":1}`))
	assert.Equal(t, "not json", Pretty("not json"))
	assert.Equal(t, "", Pretty("  "))
}

func TestScriptJSONEscapesClosingTags(t *testing.T) {
	js, ok := ScriptJSON(`{"name": "</script><b>"}`)
	require.True(t, ok)
	assert.NotContains(t, string(js), "</script>")
	assert.Contains(t, string(js), `\u003c/script\u003e`)

	_, ok = ScriptJSON("{broken")
	assert.False(t, ok)
	_, ok = ScriptJSON("")
	assert.False(t, ok)
}

func TestFromMetaTags(t *testing.T) {
	assert.Equal(t, DefaultMeta, FromMetaTags(nil))

	m := FromMetaTags(&fairapi.MetaTags{MetaTitle: "Fairs", OGImage: "https://img", GoogleVerification: "g-code"})
	assert.Equal(t, "Fairs", m.Title)
	assert.Equal(t, "https://img", m.OGImage)
	assert.Equal(t, "g-code", m.GoogleVerification)

	assert.Equal(t, "검색 | Fairs", m.WithTitle("검색").Title)
	assert.Equal(t, "Fairs", m.WithTitle(" ").Title)
}
