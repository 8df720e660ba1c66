package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReflectSchema(t *testing.T) {
	type output struct {
		Score  float64 `json:"score" jsonschema:"required,description=Rating from 0 to 1"`
		Reason string  `json:"reason,omitempty"`
	}

	schema, err := reflectSchema(&output{})
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "score")
	assert.Contains(t, props, "reason")

	score, ok := props["score"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "number", score["type"])
	assert.Equal(t, "Rating from 0 to 1", score["description"])
}
