// Package shared contains value objects, domain events and aggregate
// plumbing shared by the memory, edge and entity-hub aggregates.
package shared

// Content and embedding bounds, per the data model (spec §3).
const (
	// MaxContentLength is the maximum allowed memory content length in characters.
	MaxContentLength = 8000

	// MinTranscriptLength and MaxTranscriptLength bound a consolidation
	// transcript (spec §4.2 sizing constraints).
	MinTranscriptLength = 10
	MaxTranscriptLength = 100000

	// MaxUserIDLength bounds the user identifier value object.
	MaxUserIDLength = 100

	// MaxEntityNameLength bounds an entity hub's normalized name.
	MaxEntityNameLength = 255
)

// SupportedEmbeddingDimensions enumerates the valid values for the
// process-wide EMBEDDING_DIMENSIONS constant.
var SupportedEmbeddingDimensions = map[int]bool{
	256: true, 512: true, 1024: true, 1408: true, 1536: true, 3072: true,
}

// DefaultEmbeddingDimensions is used when no explicit dimension is configured.
const DefaultEmbeddingDimensions = 1408
