package entityhub

import (
	"context"
	"strings"

	"github.com/coregx/ahocorasick"

	domain "memory-engine/internal/domain/entityhub"
)

// userAutomaton wraps a per-user Aho-Corasick trie built from the user's
// top hubs (spec §4.5 step 1, N=500), mapping each matched pattern back to
// the hub that owns it (a hub can own more than one pattern: its
// entity_name plus every alias).
type userAutomaton struct {
	automaton *ahocorasick.Automaton
	owners    []*domain.EntityHub
}

// buildUserAutomaton loads the user's top-500 hubs by usage and compiles a
// fresh trie over entity_name ∪ aliases. Rebuilt per extraction call, unlike
// the fixed global techAutomaton, since the learned dictionary changes as
// the user accumulates hubs.
func buildUserAutomaton(ctx context.Context, repo domain.Repository, userID string) (*userAutomaton, error) {
	hubs, err := repo.TopByUsage(ctx, userID, topHubsForDictionary)
	if err != nil {
		return nil, err
	}
	if len(hubs) == 0 {
		return nil, nil
	}

	var patterns []string
	var owners []*domain.EntityHub
	for _, h := range hubs {
		patterns = append(patterns, h.EntityName())
		owners = append(owners, h)
		for _, alias := range h.Aliases() {
			patterns = append(patterns, strings.ToLower(alias))
			owners = append(owners, h)
		}
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	return &userAutomaton{automaton: automaton, owners: owners}, nil
}

// extract reports the distinct hubs the user's learned dictionary matched
// in text, alongside their match spans for residual-text masking.
func (u *userAutomaton) extract(text string) ([]*domain.EntityHub, [][2]int) {
	if u == nil {
		return nil, nil
	}
	lowered := strings.ToLower(text)
	matches := u.automaton.FindAllOverlapping([]byte(lowered))
	seenHub := make(map[string]bool, len(matches))
	var hubs []*domain.EntityHub
	var spans [][2]int
	for _, m := range matches {
		hub := u.owners[m.PatternID]
		spans = append(spans, [2]int{m.Start, m.End})
		if seenHub[hub.EntityName()] {
			continue
		}
		seenHub[hub.EntityName()] = true
		hubs = append(hubs, hub)
	}
	return hubs, spans
}
