// Package connectors contains document sources that feed the indexer.
//
// Each source implements driven.DocumentSource: it walks its location and
// emits domain.Document values holding extracted text, and can watch for
// changes.
//
// Available sources:
//   - filesystem: local files and directories
package connectors
