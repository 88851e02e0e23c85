package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/avatarcrop/pkg/types"
)

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// CenterBox is reported when the model gives no usable subject.
var CenterBox = types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}

// Fallback builds a low-confidence centered result.
func Fallback(label, description string) *types.AnalysisResult {
	return &types.AnalysisResult{
		Primary: types.Primary{
			Label:      label,
			Confidence: 0,
			Box:        CenterBox,
			Cx:         0.5,
			Cy:         0.5,
		},
		Description: description,
		Tags:        []string{"fallback"},
	}
}

// ParseSubject turns a model reply into a result. Replies that are not
// JSON yield a fallback rather than an error, since a wrong guess only
// costs a centered crop.
func ParseSubject(raw string) *types.AnalysisResult {
	raw = SanitizeJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return Fallback("none", "model returned non-JSON response")
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Fallback("none", "failed to parse model response")
	}

	p := &result.Primary
	if p.Box.W == 0 && p.Box.H == 0 {
		p.Box = CenterBox
	}
	if p.Cx == 0 && p.Cy == 0 {
		p.Cx, p.Cy = p.Box.Center()
	}
	return &result
}

// SanitizeJSON strips code fences, comments and trailing commas, and keeps
// only the outermost object.
func SanitizeJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
