package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"

	"memory-engine/internal/domain/memory"
)

// memoryExportRow is the flattened, serialization-friendly projection of
// a Memory used by both export encodings.
type memoryExportRow struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Type       string   `json:"type"`
	Domain     string   `json:"domain"`
	Category   string   `json:"category"`
	Entities   []string `json:"entities"`
	Importance int      `json:"importance"`
	Confidence float64  `json:"confidence"`
	Status     string   `json:"status"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

func toExportRows(memories []*memory.Memory) []memoryExportRow {
	rows := make([]memoryExportRow, 0, len(memories))
	for _, m := range memories {
		rows = append(rows, memoryExportRow{
			ID:         m.ID().String(),
			Content:    m.Content().String(),
			Type:       string(m.Type()),
			Domain:     m.Domain(),
			Category:   m.Category(),
			Entities:   m.Entities().ToSlice(),
			Importance: m.Importance(),
			Confidence: m.Confidence(),
			Status:     string(m.Status()),
			CreatedAt:  m.CreatedAt().Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt:  m.UpdatedAt().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return rows
}

func encodeMemoriesJSON(memories []*memory.Memory) ([]byte, error) {
	return json.MarshalIndent(toExportRows(memories), "", "  ")
}

// encodeMemoriesCSV uses the standard library's encoding/csv: no library
// in the example pack provides CSV writing (only a single unrelated
// stdlib csv.Reader usage), so this is the one export encoding built on
// the standard library rather than a third-party package.
func encodeMemoriesCSV(memories []*memory.Memory) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "content", "type", "domain", "category", "entities",
		"importance", "confidence", "status", "created_at", "updated_at"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, row := range toExportRows(memories) {
		record := []string{
			row.ID, row.Content, row.Type, row.Domain, row.Category,
			strings.Join(row.Entities, "|"),
			strconv.Itoa(row.Importance),
			strconv.FormatFloat(row.Confidence, 'f', 4, 64),
			row.Status, row.CreatedAt, row.UpdatedAt,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
