package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	owners := make(map[string]string)
	names := make(map[string]bool)

	for _, n := range Defaults() {
		require.NotEmpty(t, n.Extensions(), n.Name())
		assert.False(t, names[n.Name()], "duplicate name %s", n.Name())
		names[n.Name()] = true

		for _, ext := range n.Extensions() {
			assert.Regexp(t, `^\.[a-z]+$`, ext)
			if owner, ok := owners[ext]; ok {
				t.Errorf("%s claimed by both %s and %s", ext, owner, n.Name())
			}
			owners[ext] = n.Name()
		}
	}

	assert.Equal(t, "plaintext", owners[".txt"])
	assert.Equal(t, "markdown", owners[".md"])
	assert.Equal(t, "html", owners[".html"])
	assert.Equal(t, "docx", owners[".docx"])
	assert.Equal(t, "eml", owners[".eml"])
}

func TestDefaults_EmptyInput(t *testing.T) {
	for _, n := range Defaults() {
		if n.Name() == "docx" || n.Name() == "eml" {
			continue
		}
		got, err := n.Normalise(context.Background(), nil)
		require.NoError(t, err, n.Name())
		assert.Empty(t, got, n.Name())
	}
}
