// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - VectorIndex: Scoped cosine search over indexed points (memory, SQLite, pgvector, Qdrant)
//   - EmbeddingService: Converts text to fixed-length vectors
//   - LLMService: Generates the grounded answer from a composed prompt
//   - ConfigStore: Application configuration
//   - PostProcessorPipeline: Turns a document into chunks
//
// # Optional Interfaces
//
// These can be nil - the pipeline falls back to built-in behaviour:
//
//   - PromptStore: User-editable prompt preambles. Embedded defaults are used without it.
//   - StageObserver: Receives stage boundary events for observability.
//   - SyncStateStore, DocumentSource: Folder sync. Only the sync service uses them.
//   - ConfigValidator: Connectivity checks behind "config check".
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
