package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeJSON(t *testing.T) {
	raw := "```json\n{\n  \"a\": 1, // one\n  /* two */ \"b\": [1,2,],\n}\n```"
	assert.JSONEq(t, `{"a":1,"b":[1,2]}`, SanitizeJSON(raw))
	assert.Equal(t, `{"x":1}`, SanitizeJSON(`Sure! {"x":1} hope that helps`))
}

func TestParseSubject(t *testing.T) {
	res := ParseSubject(`{"primary":{"label":"face","confidence":0.9,"box":{"x":0.6,"y":0.1,"w":0.2,"h":0.3}}}`)
	assert.Equal(t, "face", res.Primary.Label)
	assert.InDelta(t, 0.7, res.Primary.Cx, 1e-9)
	assert.InDelta(t, 0.25, res.Primary.Cy, 1e-9)

	res = ParseSubject("I see a cat")
	assert.Equal(t, "none", res.Primary.Label)
	assert.Equal(t, CenterBox, res.Primary.Box)

	res = ParseSubject(`{"primary": nope}`)
	assert.Equal(t, "none", res.Primary.Label)
	assert.Zero(t, res.Primary.Confidence)
}
