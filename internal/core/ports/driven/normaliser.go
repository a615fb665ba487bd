package driven

import "context"

// Normaliser extracts indexable text from one file format.
type Normaliser interface {
	// Name identifies the format in logs.
	Name() string

	// Extensions lists the lower-case file extensions, with leading dot,
	// this normaliser reads.
	Extensions() []string

	// Normalise returns the text content of raw. Content that is not valid
	// for the format returns domain.ErrInvalidInput.
	Normalise(ctx context.Context, raw []byte) (string, error)
}
