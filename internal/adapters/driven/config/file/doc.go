// Package file provides filesystem-backed implementations of driven ports.
//
// Adapters:
//   - ConfigStore: TOML settings in ~/.sercha-rag/config.toml
//   - PromptStore: answer preambles in ~/.sercha-rag/prompts/
package file
