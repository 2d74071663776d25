// Package entityhub implements the Entity Hub subsystem's extraction and
// learning engine (spec §4.5): the two-tier dictionary/heuristic/LLM
// extraction pipeline, get_or_create, linking, search, and top_entities.
package entityhub

import (
	"regexp"
	"strings"

	"github.com/coregx/ahocorasick"
)

// topHubsForDictionary bounds the per-user learned-dictionary trie (spec
// §4.5 step 1: "top-500 hubs by usage").
const topHubsForDictionary = 500

// knownTechnologies is the ~80-term global technology dictionary (spec
// §4.5's "Known global technology dictionary (~80 terms)"), ported
// verbatim from original_source/src/engine/entity_extractor.py's
// KNOWN_TECHNOLOGIES set.
var knownTechnologies = []string{
	"python", "javascript", "typescript", "java", "c++", "c#", "go", "golang",
	"rust", "ruby", "php", "swift", "kotlin", "scala", "r", "julia",

	"react", "vue", "angular", "svelte", "next.js", "nextjs", "nuxt", "remix",
	"fastapi", "django", "flask", "express", "nestjs", "rails", "laravel",

	"postgresql", "postgres", "mysql", "mongodb", "redis", "elasticsearch",
	"sqlite", "dynamodb", "cassandra", "neo4j", "supabase", "firebase",

	"aws", "azure", "gcp", "docker", "kubernetes", "k8s", "terraform",
	"github actions", "gitlab ci", "jenkins", "vercel", "netlify", "railway",

	"openai", "anthropic", "claude", "gpt", "llm", "langchain", "llamaindex",
	"pytorch", "tensorflow", "scikit-learn", "pandas", "numpy",

	"git", "npm", "yarn", "pnpm", "pip", "poetry", "vscode", "cursor",
	"postman", "figma", "notion", "slack", "discord",

	"async/await", "rest api", "graphql", "websocket", "microservices",
	"serverless", "ci/cd", "devops", "agile", "scrum",
}

// canonicalCasing is the ~25-entry display-casing table for well-known
// names (spec §4.5 step 4), ported from the same module's casing_map.
var canonicalCasing = map[string]string{
	"javascript": "JavaScript", "typescript": "TypeScript", "postgresql": "PostgreSQL",
	"mongodb": "MongoDB", "graphql": "GraphQL", "nextjs": "Next.js", "nodejs": "Node.js",
	"vuejs": "Vue.js", "reactjs": "React", "github": "GitHub", "gitlab": "GitLab",
	"vscode": "VS Code", "fastapi": "FastAPI", "openai": "OpenAI", "chatgpt": "ChatGPT",
	"aws": "AWS", "gcp": "GCP", "api": "API", "sql": "SQL", "css": "CSS", "html": "HTML",
	"json": "JSON", "xml": "XML", "yaml": "YAML", "llm": "LLM", "ai": "AI", "ml": "ML",
}

// extensionLanguage maps a file extension to its language name (spec
// §4.5 step 2's "file extensions mapped to language names").
var extensionLanguage = map[string]string{
	"py": "Python", "ts": "TypeScript", "js": "JavaScript", "rs": "Rust",
	"go": "Go", "rb": "Ruby", "java": "Java", "sql": "SQL",
}

var (
	camelCaseRegex = regexp.MustCompile(`\b[A-Z][a-z]+(?:[A-Z][a-z]+)+\b`)
	kebabCaseRegex = regexp.MustCompile(`\b[a-z]+(?:-[a-z]+)+\b`)
	npmScopeRegex  = regexp.MustCompile(`@[\w-]+/[\w-]+`)
	versionedRegex = regexp.MustCompile(`\b([A-Z][a-z]+)\s*\d+(?:\.\d+)*\b`)
	fileExtRegex   = regexp.MustCompile(`\.([a-z]{2,4})\b`)
)

// techAutomaton builds the Aho-Corasick matcher over the global
// technology dictionary once, at package init, since that dictionary is
// fixed for the process lifetime (unlike the per-user learned dictionary,
// which hubDictionary builds fresh per extraction call).
var techAutomaton = mustBuildTechAutomaton()

func mustBuildTechAutomaton() *ahocorasick.Automaton {
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(knownTechnologies).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		panic("entityhub: failed to build technology dictionary automaton: " + err.Error())
	}
	return automaton
}

// extractFromTechDictionary runs the fixed technology dictionary over
// lowercased text (spec §4.5 step 2's heuristic pass, dictionary half).
func extractFromTechDictionary(text string) []string {
	lowered := strings.ToLower(text)
	matches := techAutomaton.FindAllOverlapping([]byte(lowered))
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		term := knownTechnologies[m.PatternID]
		if seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}

// extractFromPatterns runs the regex family pass (spec §4.5 step 2's
// CamelCase/kebab/scoped/version-qualified/file-extension families).
func extractFromPatterns(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		key := strings.ToLower(v)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, v)
	}

	for _, m := range camelCaseRegex.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range kebabCaseRegex.FindAllString(text, -1) {
		if len(m) > 3 {
			add(m)
		}
	}
	for _, m := range npmScopeRegex.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range versionedRegex.FindAllStringSubmatch(text, -1) {
		add(m[0])
	}
	for _, ext := range fileExtRegex.FindAllStringSubmatch(strings.ToLower(text), -1) {
		if lang, ok := extensionLanguage[ext[1]]; ok {
			add(lang)
		}
	}
	return out
}

// globalKnownSpans reports the byte spans the tech dictionary and
// heuristic pattern passes claimed, for residual-text masking (spec §4.5
// step 3).
func globalKnownSpans(text string) [][2]int {
	var spans [][2]int
	lowered := strings.ToLower(text)
	for _, m := range techAutomaton.FindAllOverlapping([]byte(lowered)) {
		spans = append(spans, [2]int{m.Start, m.End})
	}
	for _, loc := range camelCaseRegex.FindAllStringIndex(text, -1) {
		spans = append(spans, [2]int{loc[0], loc[1]})
	}
	for _, loc := range kebabCaseRegex.FindAllStringIndex(text, -1) {
		if loc[1]-loc[0] > 3 {
			spans = append(spans, [2]int{loc[0], loc[1]})
		}
	}
	for _, loc := range npmScopeRegex.FindAllStringIndex(text, -1) {
		spans = append(spans, [2]int{loc[0], loc[1]})
	}
	for _, loc := range versionedRegex.FindAllStringIndex(text, -1) {
		spans = append(spans, [2]int{loc[0], loc[1]})
	}
	return spans
}

// blankSpans replaces every claimed byte range with spaces (preserving
// newlines, so the residual text keeps its line structure), leaving only
// the text not yet claimed by an earlier extraction pass.
func blankSpans(text string, spans [][2]int) string {
	masked := []byte(text)
	for _, span := range spans {
		for i := span[0]; i < span[1] && i < len(masked); i++ {
			if masked[i] != '\n' {
				masked[i] = ' '
			}
		}
	}
	return string(masked)
}

// normalise applies spec §4.5 step 4: lowercase dedup key, canonical
// casing for known names, drop anything under 2 characters.
func normalise(entities []string) []string {
	seen := make(map[string]bool, len(entities))
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		e = strings.TrimSpace(e)
		if len(e) < 2 {
			continue
		}
		key := strings.ToLower(e)
		if seen[key] {
			continue
		}
		seen[key] = true
		if cased, ok := canonicalCasing[key]; ok {
			out = append(out, cased)
		} else {
			out = append(out, e)
		}
	}
	return out
}
