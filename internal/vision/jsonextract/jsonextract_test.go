package jsonextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDirectParse(t *testing.T) {
	obj, err := Extract(`{"summary": "calm kitchen", "people_count": 0}`)
	require.NoError(t, err)
	assert.Equal(t, "calm kitchen", obj["summary"])
}

func TestExtractStripsMarkdownFences(t *testing.T) {
	obj, err := Extract("```json\n{\"summary\": \"person at door\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "person at door", obj["summary"])
}

func TestExtractFindsBoundariesWithNoise(t *testing.T) {
	obj, err := Extract(`Sure, here's the analysis: {"summary": "empty room"} Hope that helps!`)
	require.NoError(t, err)
	assert.Equal(t, "empty room", obj["summary"])
}

func TestExtractRepairsTruncatedJSON(t *testing.T) {
	obj, err := Extract(`{"summary": "person entering", "objects": ["person", "bag"`)
	require.NoError(t, err)
	assert.Equal(t, "person entering", obj["summary"])
}

func TestExtractNoJSONAtAll(t *testing.T) {
	_, err := Extract("I cannot analyze this image.")
	assert.ErrorIs(t, err, ErrNoJSON)
}
