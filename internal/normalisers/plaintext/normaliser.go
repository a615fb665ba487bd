// Package plaintext reads UTF-8 text files as-is.
package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Normaliser handles plain text and source files.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Name returns "plaintext".
func (n *Normaliser) Name() string {
	return "plaintext"
}

// Extensions returns the text formats read verbatim.
func (n *Normaliser) Extensions() []string {
	return []string{
		".txt", ".text", ".rst", ".log", ".csv",
		".json", ".yaml", ".yml", ".toml",
		".go", ".py", ".rs", ".java", ".c", ".h", ".cpp",
		".rb", ".sh", ".sql", ".js", ".ts", ".css",
	}
}

// Normalise drops a leading byte order mark and converts CRLF line endings.
// Anything that is not valid UTF-8 is rejected.
func (n *Normaliser) Normalise(_ context.Context, raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: not UTF-8 text", domain.ErrInvalidInput)
	}
	return strings.ReplaceAll(string(raw), "\r\n", "\n"), nil
}
