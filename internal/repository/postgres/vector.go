package postgres

import (
	"strconv"
	"strings"

	"memory-engine/internal/domain/shared"
)

// parseVector decodes pgvector's "[1,2,3]" text output back into a Go
// slice. Returns nil for an empty/NULL representation.
func parseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil, nil
	}
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		out = append(out, float32(f))
	}
	return out, nil
}

// vectorLiteral renders an embedding as the text form pgvector's input
// function accepts ($1::vector), the same encoding
// _examples/intelligencedev-manifold's postgres_vector.go uses since the
// pgvector Go driver extension isn't part of this stack.
func vectorLiteral(v shared.EmbeddingVector) *string {
	if v.IsEmpty() {
		return nil
	}
	values := v.Values()
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	s := b.String()
	return &s
}
