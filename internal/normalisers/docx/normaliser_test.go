package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// buildDOCX creates a minimal DOCX archive in memory. Empty parts are left
// out.
func buildDOCX(t *testing.T, documentXML, coreXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		documentPart:          documentXML,
		corePart:              coreXML,
	}
	for name, content := range parts {
		if content == "" {
			continue
		}
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func body(paragraphs string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>` + paragraphs + `</w:body>
</w:document>`
}

func core(title string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>` + title + `</dc:title>
</cp:coreProperties>`
}

func TestNormaliser_Extensions(t *testing.T) {
	n := New()

	assert.Equal(t, "docx", n.Name())
	assert.Equal(t, []string{".docx"}, n.Extensions())
}

func TestNormalise(t *testing.T) {
	tests := []struct {
		name     string
		document string
		core     string
		want     string
	}{
		{
			name:     "paragraphs",
			document: body(`<w:p><w:r><w:t>First.</w:t></w:r></w:p><w:p><w:r><w:t>Second.</w:t></w:r></w:p>`),
			want:     "First.\nSecond.",
		},
		{
			name:     "runs are joined",
			document: body(`<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>`),
			want:     "Hello world",
		},
		{
			name:     "title first",
			document: body(`<w:p><w:r><w:t>Ten days of leave.</w:t></w:r></w:p>`),
			core:     core("Leave Policy"),
			want:     "Leave Policy\n\nTen days of leave.",
		},
		{
			name:     "title already leads the body",
			document: body(`<w:p><w:r><w:t>Leave Policy</w:t></w:r></w:p><w:p><w:r><w:t>Ten days.</w:t></w:r></w:p>`),
			core:     core("Leave Policy"),
			want:     "Leave Policy\nTen days.",
		},
		{
			name:     "empty body",
			document: body(""),
			want:     "",
		},
		{
			name:     "empty body with title",
			document: body(""),
			core:     core("Untitled Draft"),
			want:     "Untitled Draft",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Normalise(context.Background(), buildDOCX(t, tt.document, tt.core))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalise_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  func(t *testing.T) []byte
	}{
		{name: "not a zip", raw: func(*testing.T) []byte { return []byte("plain text") }},
		{name: "no document part", raw: func(t *testing.T) []byte { return buildDOCX(t, "", core("x")) }},
		{name: "broken xml", raw: func(t *testing.T) []byte { return buildDOCX(t, "<w:document><w:body>", "") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Normalise(context.Background(), tt.raw(t))
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestNormalise_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Normalise(ctx, buildDOCX(t, body(""), ""))

	assert.ErrorIs(t, err, context.Canceled)
}
