// Package normalisers collects the format extractors that turn files into
// indexable text.
package normalisers

import (
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/docx"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/eml"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/html"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/markdown"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/plaintext"
)

// Defaults returns one instance of every built-in normaliser.
func Defaults() []driven.Normaliser {
	return []driven.Normaliser{
		plaintext.New(),
		markdown.New(),
		html.New(),
		docx.New(),
		eml.New(),
	}
}
