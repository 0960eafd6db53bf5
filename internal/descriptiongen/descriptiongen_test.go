package descriptiongen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopGenerator_UsesHintWhenPresent(t *testing.T) {
	g := &NoopGenerator{}

	result, err := g.Generate(context.Background(), GenerationRequest{
		LocationID: "L1",
		Terrain:    "urban",
		Hint:       "dense, rectilinear streets and buildings with frequent cross-connections",
	})
	require.NoError(t, err)
	assert.Equal(t, "dense, rectilinear streets and buildings with frequent cross-connections", result.Text)
	assert.Greater(t, result.TotalTokens(), 0)
}

func TestNoopGenerator_FallsBackWithoutHint(t *testing.T) {
	g := &NoopGenerator{}

	result, err := g.Generate(context.Background(), GenerationRequest{LocationID: "L1"})
	require.NoError(t, err)
	assert.Equal(t, "A place with no description yet.", result.Text)
}
