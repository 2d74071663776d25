package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ClassifyPrompt builds the classification-fallback prompt (spec §4.1
// step 1): infer memory_type, domain/category, and entities when the
// caller didn't supply them. Grounded on the teacher's llm.Service
// prompt-builder style (buildCategorizationPrompt): a fixed instruction
// block plus an embedded schema and strict output rules.
func ClassifyPrompt(content string) (string, CompletionOptions) {
	schema, _ := json.MarshalIndent(schemaFor[ClassificationResult](), "", "  ")
	prompt := fmt.Sprintf(`Classify the following note for a personal memory system.

Domain must be one of: KnowWhere, Personal, General (use KnowWhere and put
any more specific label in "category" if nothing else fits).
memory_type must be one of: episodic, semantic, preference, procedural, meta.
List up to 8 distinct entities (people, places, tools, concepts) mentioned.

Text:
%s

Respond with a single JSON object matching this schema:
%s`, content, schema)
	return prompt, CompletionOptions{Temperature: 0.2, MaxTokens: 300, Format: "json"}
}

// ParseClassification decodes a ClassifyPrompt response, repairing
// malformed JSON first (LLM output routinely includes markdown fences or
// trailing commas — spec §4.1's classification fallback must tolerate
// that without failing the whole write).
func ParseClassification(response string) (ClassificationResult, error) {
	var out ClassificationResult
	err := decodeJSON(response, &out)
	return out, err
}

// ExtractClaimsPrompt builds the claim-extraction prompt (spec §4.2 step 1).
func ExtractClaimsPrompt(transcript string) (string, CompletionOptions) {
	schema, _ := json.MarshalIndent(schemaFor[[]ExtractedClaim](), "", "  ")
	prompt := fmt.Sprintf(`Extract factual claims, preferences, decisions, and learnings from this
conversation transcript. Each claim should be a single, self-contained
statement. claim_type must be one of: preference, decision, workflow,
insight, project_fact, tool_usage, fact, learning, how_to, struggle,
feedback. List at most 5 entities per claim.

Transcript:
%s

Respond with a JSON array matching this schema:
%s`, transcript, schema)
	return prompt, CompletionOptions{Temperature: 0.3, MaxTokens: 2000, Format: "json"}
}

// ParseClaims decodes an ExtractClaimsPrompt response.
func ParseClaims(response string) ([]ExtractedClaim, error) {
	var out []ExtractedClaim
	err := decodeJSON(response, &out)
	return out, err
}

// ContradictionPrompt builds the contradiction-check prompt used by the
// write path's conflict-resolution branch (spec §4.1 step 5).
// Consolidation adjudicates its conflicts with ResolveConflictPrompt.
func ContradictionPrompt(claimA, claimB string) (string, CompletionOptions) {
	schema, _ := json.MarshalIndent(schemaFor[ContradictionVerdict](), "", "  ")
	prompt := fmt.Sprintf(`Compare these two statements about the same user.

Statement A: %s
Statement B: %s

Decide: do they contradict each other (is_contradiction), or does B
describe an evolution of A over time (is_evolution)? If it's an evolution,
write the single evolved_statement that replaces both. Exactly one of
is_contradiction/is_evolution should be true, or neither if they are
simply unrelated.

Respond with a single JSON object matching this schema:
%s`, claimA, claimB, schema)
	return prompt, CompletionOptions{Temperature: 0.1, MaxTokens: 400, Format: "json"}
}

// ParseContradiction decodes a ContradictionPrompt response.
func ParseContradiction(response string) (ContradictionVerdict, error) {
	var out ContradictionVerdict
	err := decodeJSON(response, &out)
	return out, err
}

// RelationshipInferencePrompt builds the relationship-inference prompt
// (spec §4.2 step 8): given the finalised claims and their entities, ask
// for directed relationship triples to materialise as knowledge edges.
func RelationshipInferencePrompt(claims []string, entities []string) (string, CompletionOptions) {
	schema, _ := json.MarshalIndent(schemaFor[[]InferredRelationship](), "", "  ")
	prompt := fmt.Sprintf(`Given these finalised claims about a user and the entities they mention,
infer relationships between entities. relationship_type should be one of:
likes, dislikes, leads_to, related_to, contradicts, supports, depends_on,
evolves_into.

Claims:
%s

Entities:
%s

Respond with a JSON array matching this schema:
%s`, strings.Join(claims, "\n"), strings.Join(entities, ", "), schema)
	return prompt, CompletionOptions{Temperature: 0.2, MaxTokens: 800, Format: "json"}
}

// ParseRelationships decodes a RelationshipInferencePrompt response.
func ParseRelationships(response string) ([]InferredRelationship, error) {
	var out []InferredRelationship
	err := decodeJSON(response, &out)
	return out, err
}

// ResolveConflictPrompt builds the conflict-resolution prompt (spec §4.2
// step 5): given a detected conflict, ask whether it's a real contradiction
// or an evolution of thinking over time.
func ResolveConflictPrompt(claimA, claimB string, similarity float64) (string, CompletionOptions) {
	schema, _ := json.MarshalIndent(schemaFor[ResolutionResult](), "", "  ")
	prompt := fmt.Sprintf(`Analyze these two potentially conflicting statements from the same user.

Statement A: %s
Statement B: %s

Similarity score: %.2f

Determine whether these truly contradict each other or can both be true
(e.g. different contexts, or B is an evolution of A over time). If there
has been an evolution, describe the resulting single statement in
evolved_memory; otherwise leave it empty.

Respond with a single JSON object matching this schema:
%s`, claimA, claimB, similarity, schema)
	return prompt, CompletionOptions{Temperature: 0.3, MaxTokens: 400, Format: "json"}
}

// ParseResolution decodes a ResolveConflictPrompt response.
func ParseResolution(response string) (ResolutionResult, error) {
	var out ResolutionResult
	err := decodeJSON(response, &out)
	return out, err
}

// DetectPatternsPrompt builds the pattern-detection prompt (spec §4.2
// step 9): summarise the finalised claims into a handful of short,
// human-readable behavioural patterns.
func DetectPatternsPrompt(claims []string) (string, CompletionOptions) {
	prompt := fmt.Sprintf(`Analyze these statements about a user and identify 3-5 patterns: consistent
preferences, shifts in thinking over time, recurring themes, learning
habits, or ways of working. Each pattern should be a short, specific,
standalone sentence.

Statements:
%s

Respond with a JSON array of pattern strings, e.g.
["Prefers TypeScript for its type safety", "Iterates in small, testable steps"]`, strings.Join(claims, "\n"))
	return prompt, CompletionOptions{Temperature: 0.5, MaxTokens: 512, Format: "json"}
}

// ParsePatterns decodes a DetectPatternsPrompt response.
func ParsePatterns(response string) ([]string, error) {
	var out []string
	err := decodeJSON(response, &out)
	return out, err
}

// EntityExtractionPrompt builds the residual-text entity extraction prompt
// (spec §4.5 step 3): only the text left unclaimed by the dictionary and
// heuristic passes is submitted here, since those two passes already
// handle well-known technology names and structural patterns cheaply.
func EntityExtractionPrompt(residualText string) (string, CompletionOptions) {
	schema, _ := json.MarshalIndent(schemaFor[[]ExtractedEntity](), "", "  ")
	prompt := fmt.Sprintf(`Identify named entities (people, places, events, recipes, concepts,
technologies, projects, organizations) mentioned in this text. Skip generic
nouns and anything already obviously covered by common technology names.

Text:
%s

Respond with a JSON array matching this schema:
%s`, residualText, schema)
	return prompt, CompletionOptions{Temperature: 0.2, MaxTokens: 500, Format: "json"}
}

// ParseEntities decodes an EntityExtractionPrompt response.
func ParseEntities(response string) ([]ExtractedEntity, error) {
	var out []ExtractedEntity
	err := decodeJSON(response, &out)
	return out, err
}

// decodeJSON strips markdown code fences then unmarshals, repairing the
// JSON first when the fast path fails — language models routinely emit
// trailing commas or unescaped quotes under load.
func decodeJSON(raw string, out any) error {
	cleaned := stripCodeFence(raw)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return fmt.Errorf("llm: response is not valid or repairable JSON: %w", err)
	}
	return json.Unmarshal([]byte(repaired), out)
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
