// Package registry manages client records: onboarding, edits, score ingestion,
// messaging, tasks, and the live sorted client list.
package registry

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/clientdesk/internal/model"
)

// scoreSubfields are the keys checked, in order, when a bureau score is
// stored as an object rather than a bare number.
var scoreSubfields = []string{"fico_score_8", "fico8", "score", "value"}

// NormalizeClient turns a raw client document into a Client. It never fails:
// missing or malformed fields fall back to defaults.
//
// When only a combined "name" is stored, the first whitespace-separated token
// becomes the first name and the rest the last name, so multi-word first names
// are split incorrectly.
func NormalizeClient(id string, raw map[string]any) model.Client {
	c := model.Client{
		ID:     id,
		Email:  stringField(raw, "email"),
		Phone:  stringField(raw, "phone"),
		Status: model.StatusLead,
	}

	c.FirstName, c.LastName = normalizeName(raw)

	if status, ok := model.ParseClientStatus(stringField(raw, "status")); ok {
		c.Status = status
	}

	if scores, ok := raw["scores"].(map[string]any); ok {
		c.Scores = normalizeScores(scores)
	}

	if pinned, ok := raw["isPinned"].(bool); ok {
		c.IsPinned = pinned
	}

	c.LastMessage = flattenMessage(raw["lastMessage"])

	if created, ok := raw["createdAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			c.CreatedAt = &t
		}
	}

	return c
}

func normalizeName(raw map[string]any) (first, last string) {
	first = strings.TrimSpace(stringField(raw, "firstName"))
	last = strings.TrimSpace(stringField(raw, "lastName"))
	if first != "" || last != "" {
		if first == "" {
			first = "Unknown"
		}
		return first, last
	}

	parts := strings.Fields(stringField(raw, "name"))
	if len(parts) == 0 {
		return "Unknown", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func normalizeScores(raw map[string]any) model.Scores {
	tu, ok := raw["transUnion"]
	if !ok {
		tu = raw["transunion"]
	}
	return model.Scores{
		Experian:   parseScore(raw["experian"]),
		Equifax:    parseScore(raw["equifax"]),
		TransUnion: parseScore(tu),
	}
}

// parseScore accepts a number, a numeric string, or an object carrying one of
// scoreSubfields. Zero is a real score; anything unparseable is nil.
func parseScore(v any) *int {
	switch val := v.(type) {
	case nil:
		return nil
	case int:
		return &val
	case int64:
		return intPtr(float64(val))
	case float64:
		return intPtr(val)
	case float32:
		return intPtr(float64(val))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil
		}
		return intPtr(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		return intPtr(f)
	case map[string]any:
		for _, key := range scoreSubfields {
			if inner, ok := val[key]; ok {
				return parseScore(inner)
			}
		}
		return nil
	default:
		return nil
	}
}

func intPtr(f float64) *int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

func flattenMessage(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if text, ok := val["text"].(string); ok {
			return text
		}
	}
	return ""
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// SortClients orders clients pinned first, then by display name ignoring
// case, then by id.
func SortClients(clients []model.Client) {
	sort.SliceStable(clients, func(i, j int) bool {
		a, b := clients[i], clients[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		an, bn := strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName())
		if an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}
