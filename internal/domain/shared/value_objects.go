package shared

import (
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Pre-compiled regular expressions used by keyword extraction.
var (
	alphanumericOnlyRegex = regexp.MustCompile(`[^a-zA-Z0-9]`)
	contentCleanupRegex   = regexp.MustCompile(`[^a-zA-Z0-9 ]+`)
)

// MemoryID is a value object wrapping a memory's opaque 128-bit identity.
type MemoryID struct{ value string }

func NewMemoryID() MemoryID { return MemoryID{value: uuid.New().String()} }

func ParseMemoryID(id string) (MemoryID, error) {
	if _, err := uuid.Parse(id); err != nil {
		return MemoryID{}, ErrInvalidMemoryID
	}
	return MemoryID{value: id}, nil
}

func (id MemoryID) String() string           { return id.value }
func (id MemoryID) Equals(other MemoryID) bool { return id.value == other.value }
func (id MemoryID) IsEmpty() bool             { return id.value == "" }

// EdgeID is a value object wrapping a knowledge edge's identity.
type EdgeID struct{ value string }

func NewEdgeID() EdgeID { return EdgeID{value: uuid.New().String()} }

func ParseEdgeID(id string) (EdgeID, error) {
	if _, err := uuid.Parse(id); err != nil {
		return EdgeID{}, ErrInvalidMemoryID
	}
	return EdgeID{value: id}, nil
}

func (id EdgeID) String() string         { return id.value }
func (id EdgeID) Equals(other EdgeID) bool { return id.value == other.value }

// EntityID is a value object wrapping an entity hub's identity.
type EntityID struct{ value string }

func NewEntityID() EntityID { return EntityID{value: uuid.New().String()} }

func ParseEntityID(id string) (EntityID, error) {
	if _, err := uuid.Parse(id); err != nil {
		return EntityID{}, ErrInvalidMemoryID
	}
	return EntityID{value: id}, nil
}

func (id EntityID) String() string           { return id.value }
func (id EntityID) Equals(other EntityID) bool { return id.value == other.value }
func (id EntityID) IsEmpty() bool             { return id.value == "" }

// UserID is the hard isolation key: every query in the system is
// predicated on it, and no value object crosses it implicitly.
type UserID struct{ value string }

func NewUserID(id string) (UserID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return UserID{}, ErrEmptyUserID
	}
	if len(id) > MaxUserIDLength {
		return UserID{}, ErrUserIDTooLong
	}
	return UserID{value: id}, nil
}

func ParseUserID(id string) (UserID, error) { return NewUserID(id) }

func (id UserID) String() string          { return id.value }
func (id UserID) Equals(other UserID) bool { return id.value == other.value }
func (id UserID) IsEmpty() bool           { return id.value == "" }

// Content is the text payload of a memory: validated, length-bounded,
// and the source of the keyword extraction used by classification
// fallbacks and importance derivation.
type Content struct{ value string }

func NewContent(value string) (Content, error) {
	value = strings.TrimSpace(value)
	if len(value) == 0 {
		return Content{}, ErrEmptyContent
	}
	if len(value) > MaxContentLength {
		return Content{}, ErrContentTooLong
	}
	return Content{value: value}, nil
}

func (c Content) String() string            { return c.value }
func (c Content) Len() int                  { return len(c.value) }
func (c Content) WordCount() int            { return len(strings.Fields(c.value)) }
func (c Content) Equals(other Content) bool { return c.value == other.value }

func (c Content) Validate() error {
	if len(c.value) == 0 {
		return ErrEmptyContent
	}
	if len(c.value) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// ExtractKeywords pulls normalized, stop-word-filtered tokens out of the
// content. The processor's fallback classification uses them as the
// memory's entity list when the caller supplied no entities.
func (c Content) ExtractKeywords() Keywords {
	content := strings.ToLower(c.value)
	content = contentCleanupRegex.ReplaceAllString(content, "")
	words := strings.Fields(content)

	unique := make(map[string]bool)
	for _, word := range words {
		word = cleanWord(word)
		if isSignificantWord(word) {
			unique[word] = true
		}
	}
	return Keywords{words: unique}
}

// Keywords is a normalized bag of significant tokens.
type Keywords struct{ words map[string]bool }

func NewKeywords(words []string) Keywords {
	unique := make(map[string]bool)
	for _, word := range words {
		word = cleanWord(strings.ToLower(word))
		if isSignificantWord(word) {
			unique[word] = true
		}
	}
	return Keywords{words: unique}
}

func (k Keywords) Contains(word string) bool { return k.words[strings.ToLower(word)] }
func (k Keywords) Count() int                { return len(k.words) }
func (k Keywords) IsEmpty() bool             { return len(k.words) == 0 }

func (k Keywords) ToSlice() []string {
	result := make([]string, 0, len(k.words))
	for word := range k.words {
		result = append(result, word)
	}
	sort.Strings(result)
	return result
}

// EntityList is the ordered, de-duplicated list of entity names attached
// to a memory (spec §3 "Entities: ordered list of short strings").
type EntityList struct{ values []string }

func NewEntityList(values []string) EntityList {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	return EntityList{values: out}
}

func (e EntityList) Len() int          { return len(e.values) }
func (e EntityList) ToSlice() []string { return append([]string(nil), e.values...) }
func (e EntityList) Contains(name string) bool {
	for _, v := range e.values {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}

// EmbeddingVector is a fixed-width embedding. Its width is the
// process-wide constant D (spec §3 invariant: embedding.length = D).
type EmbeddingVector struct{ values []float32 }

func NewEmbeddingVector(values []float32) EmbeddingVector {
	return EmbeddingVector{values: append([]float32(nil), values...)}
}

func (e EmbeddingVector) Dimensions() int   { return len(e.values) }
func (e EmbeddingVector) Values() []float32 { return append([]float32(nil), e.values...) }
func (e EmbeddingVector) IsEmpty() bool     { return len(e.values) == 0 }

// CosineSimilarity computes similarity against another vector of the
// same dimensionality. Returns 0 if dimensions mismatch or either vector
// is a zero vector.
func (e EmbeddingVector) CosineSimilarity(other EmbeddingVector) float64 {
	if len(e.values) == 0 || len(e.values) != len(other.values) {
		return 0
	}
	var dot, magA, magB float64
	for i := range e.values {
		a := float64(e.values[i])
		b := float64(other.values[i])
		dot += a * b
		magA += a * a
		magB += b * b
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (sqrt(magA) * sqrt(magB))
}

func sqrt(x float64) float64 {
	if x <= 0 {
		return 0
	}
	z := x
	for i := 0; i < 32; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

// Version is an optimistic-locking counter shared by the memory and edge
// aggregates.
type Version struct{ value int }

func NewVersion() Version { return Version{value: 0} }

func ParseVersion(value int) Version {
	if value < 0 {
		value = 0
	}
	return Version{value: value}
}

func (v Version) Int() int             { return v.value }
func (v Version) Next() Version        { return Version{value: v.value + 1} }
func (v Version) Equals(other Version) bool { return v.value == other.value }

// Helper functions shared by keyword extraction.

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true,
	"and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "up": true, "about": true,
	"into": true, "through": true, "during": true, "before": true, "after": true,
	"above": true, "below": true, "between": true, "under": true,
	"again": true, "further": true, "then": true, "once": true,
	"is": true, "am": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "should": true, "could": true, "ought": true,
	"i": true, "me": true, "my": true, "myself": true,
	"we": true, "our": true, "ours": true, "ourselves": true,
	"you": true, "your": true, "yours": true, "yourself": true, "yourselves": true,
	"he": true, "him": true, "his": true, "himself": true,
	"she": true, "her": true, "hers": true, "herself": true,
	"it": true, "its": true, "itself": true,
	"they": true, "them": true, "their": true, "theirs": true, "themselves": true,
	"what": true, "which": true, "who": true, "whom": true,
	"this": true, "that": true, "these": true, "those": true,
	"as": true, "if": true, "each": true, "how": true, "than": true,
	"too": true, "very": true, "can": true, "just": true, "also": true,
}

func cleanWord(word string) string {
	word = strings.TrimSpace(strings.ToLower(word))
	return alphanumericOnlyRegex.ReplaceAllString(word, "")
}

func isSignificantWord(word string) bool {
	return len(word) > 2 && !stopWords[word]
}
