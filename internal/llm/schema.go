package llm

import "github.com/google/jsonschema-go/jsonschema"

// ClassificationResult is the strict shape the classification prompt
// asks the model to return (spec §4.1 step 1).
type ClassificationResult struct {
	MemoryType string   `json:"memory_type" jsonschema:"enum=episodic,enum=semantic,enum=preference,enum=procedural,enum=meta"`
	Domain     string   `json:"domain"`
	Category   string   `json:"category"`
	Entities   []string `json:"entities"`
}

// ExtractedClaim is the strict shape of one element in the claim
// extraction prompt's response array (spec §4.2 step 1).
type ExtractedClaim struct {
	Claim      string   `json:"claim"`
	Source     string   `json:"source"`
	Confidence float64  `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	ClaimType  string   `json:"claim_type"`
	Entities   []string `json:"entities"`
	Importance int      `json:"importance" jsonschema:"minimum=1,maximum=10"`
}

// ContradictionVerdict is the strict shape of the contradiction-check
// prompt's response (spec §4.1 step 5 / §4.2 step 4).
type ContradictionVerdict struct {
	IsContradiction bool    `json:"is_contradiction"`
	IsEvolution     bool    `json:"is_evolution"`
	Explanation     string  `json:"explanation"`
	EvolvedStatement string `json:"evolved_statement"`
	Confidence      float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

// InferredRelationship is the strict shape of one element in the
// relationship-inference prompt's response array (spec §4.2 step 8).
type InferredRelationship struct {
	FromEntity       string  `json:"from_entity"`
	ToEntity         string  `json:"to_entity"`
	RelationshipType string  `json:"relationship_type"`
	Confidence       float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

// ResolutionResult is the strict shape of the conflict-resolution prompt's
// response (spec §4.2 step 5).
type ResolutionResult struct {
	Resolution     string  `json:"resolution"`
	IsRealConflict bool    `json:"is_real_conflict"`
	EvolvedMemory  string  `json:"evolved_memory"`
	Confidence     float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

// ExtractedEntity is the strict shape of one element in the entity
// extraction prompt's response array (spec §4.5 step 3).
type ExtractedEntity struct {
	Name     string `json:"name"`
	HubType  string `json:"hub_type" jsonschema:"enum=person,enum=place,enum=event,enum=recipe,enum=concept,enum=tech,enum=project,enum=organization"`
	Category string `json:"category"`
}

// schemaFor renders T's JSON schema for embedding into a prompt, so the
// model sees the exact shape it must produce rather than a prose
// description of it. Returns nil on reflection failure (never expected for
// these plain structs); callers fall back to the hand-written prose.
func schemaFor[T any]() *jsonschema.Schema {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil
	}
	return s
}
