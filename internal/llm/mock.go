package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider is a deterministic, pattern-matching Provider for tests
// and local development without API keys. Grounded on the teacher's
// internal/service/llm.MockProvider, generalized from category-suggestion
// pattern matching to this engine's response map.
type MockProvider struct {
	available bool
	responses map[string]string
}

// NewMockProvider creates a mock provider. responses maps a substring of
// the prompt to the canned response returned when that substring matches;
// when several keys match, which of their responses is returned is not
// defined (keys are tried in map iteration order).
func NewMockProvider(responses map[string]string) *MockProvider {
	return &MockProvider{available: true, responses: responses}
}

func (m *MockProvider) IsAvailable() bool { return m.available }

func (m *MockProvider) SetAvailable(available bool) { m.available = available }

func (m *MockProvider) Complete(ctx context.Context, prompt string, options CompletionOptions) (string, error) {
	if !m.available {
		return "", ErrProviderUnavailable
	}
	lowered := strings.ToLower(prompt)
	for key, resp := range m.responses {
		if strings.Contains(lowered, strings.ToLower(key)) {
			return resp, nil
		}
	}
	return "", fmt.Errorf("mock provider: no canned response matches prompt")
}
