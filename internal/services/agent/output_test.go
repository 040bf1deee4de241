package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFinalAnswer(t *testing.T) {
	tests := []struct {
		name string
		text string
		want any
	}{
		{"object", `{"p_e_ratio": 12.5}`, map[string]any{"p_e_ratio": 12.5}},
		{"array", `[1, 2]`, []any{1.0, 2.0}},
		{"fenced", "```json\n{\"verdict\": \"buy\"}\n```", map[string]any{"verdict": "buy"}},
		{"trailing comma", `{"verdict": "hold",}`, map[string]any{"verdict": "hold"}},
		{"prose", "Looks fine to me.", map[string]any{"message": NonJSONMessage, "output": "Looks fine to me."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFinalAnswer(tt.text))
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```{\"a\":1}```"))
	assert.Equal(t, "plain", stripFences("  plain  "))
}
