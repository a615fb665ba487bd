// Package eml reads RFC 822 email messages. Headers that help retrieval
// (From, To, Date, Subject) are kept above the body; multipart messages
// prefer their text/plain parts over HTML.
package eml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/html"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var headerFields = []string{"From", "To", "Date", "Subject"}

// Normaliser handles EML (email) documents.
type Normaliser struct{}

// New creates a new EML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Name returns "eml".
func (n *Normaliser) Name() string {
	return "eml"
}

// Extensions returns ".eml".
func (n *Normaliser) Extensions() []string {
	return []string{".eml"}
}

// Normalise returns the selected headers followed by the message body.
func (n *Normaliser) Normalise(_ context.Context, raw []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: not an email message: %w", domain.ErrInvalidInput, err)
	}

	body, err := extractBody(msg.Header.Get("Content-Type"), msg.Body)
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for _, field := range headerFields {
		value := msg.Header.Get(field)
		if field != "Date" {
			value = decodeHeader(value)
		}
		if value == "" {
			continue
		}
		fmt.Fprintf(&content, "%s: %s\n", field, value)
	}
	content.WriteString("\n")
	content.WriteString(body)

	return strings.TrimSpace(content.String()), nil
}

// decodeHeader decodes RFC 2047 encoded words, returning the header
// unchanged when it cannot.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// extractBody returns the text of a message or part body. An unparsable
// content type is read as plain text.
func extractBody(contentType string, body io.Reader) (string, error) {
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipart(body, params["boundary"])
	}

	data, readErr := io.ReadAll(body)
	if readErr != nil {
		return "", fmt.Errorf("%w: read body: %w", domain.ErrInvalidInput, readErr)
	}
	if err == nil && mediaType == "text/html" {
		return html.Text(string(data)), nil
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// extractMultipart joins the text/plain parts, falling back to the HTML
// parts when there are none. Attachments are ignored.
func extractMultipart(r io.Reader, boundary string) (string, error) {
	if boundary == "" {
		return "", nil
	}

	mr := multipart.NewReader(r, boundary)
	var textParts, htmlParts []string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Truncated messages keep whatever parts were read.
			break
		}

		mediaType, params, parseErr := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if parseErr != nil {
			mediaType = "text/plain"
		}

		switch {
		case part.FileName() != "":
			// attachment
		case strings.HasPrefix(mediaType, "multipart/"):
			nested, nestedErr := extractMultipart(part, params["boundary"])
			if nestedErr == nil && nested != "" {
				textParts = append(textParts, nested)
			}
		case mediaType == "text/plain":
			if data, err := io.ReadAll(part); err == nil {
				textParts = append(textParts, strings.ReplaceAll(string(data), "\r\n", "\n"))
			}
		case mediaType == "text/html":
			if data, err := io.ReadAll(part); err == nil {
				htmlParts = append(htmlParts, html.Text(string(data)))
			}
		}
		part.Close()
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n"), nil
	}
	return strings.Join(htmlParts, "\n"), nil
}
