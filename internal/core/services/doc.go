// Package services implements the driving port interfaces: the retrieval
// pipeline, folder sync and settings. Services orchestrate driven ports and
// never import adapters.
package services
