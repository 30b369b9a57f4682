package registry

import (
	"encoding/json"
	"testing"

	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func TestNormalizeClient_JaneDoeScores(t *testing.T) {
	raw := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Jane Doe",
		"scores": {"experian": {"fico_score_8": 710}, "equifax": 0, "transUnion": null}
	}`), &raw))

	c := NormalizeClient("jane", raw)

	assert.Equal(t, "Jane", c.FirstName)
	assert.Equal(t, "Doe", c.LastName)
	require.NotNil(t, c.Scores.Experian)
	assert.Equal(t, 710, *c.Scores.Experian)
	require.NotNil(t, c.Scores.Equifax, "zero is a valid score")
	assert.Equal(t, 0, *c.Scores.Equifax)
	assert.Nil(t, c.Scores.TransUnion)
}

func TestNormalizeClient_Names(t *testing.T) {
	tests := []struct {
		raw       map[string]any
		name      string
		wantFirst string
		wantLast  string
	}{
		{name: "explicit fields win", raw: map[string]any{"firstName": "Ann", "lastName": "Lee", "name": "Someone Else"}, wantFirst: "Ann", wantLast: "Lee"},
		{name: "split full name", raw: map[string]any{"name": "Mary Ann  Van Buren"}, wantFirst: "Mary", wantLast: "Ann Van Buren"},
		{name: "single token", raw: map[string]any{"name": "Cher"}, wantFirst: "Cher", wantLast: ""},
		{name: "missing", raw: map[string]any{}, wantFirst: "Unknown", wantLast: ""},
		{name: "blank name", raw: map[string]any{"name": "   "}, wantFirst: "Unknown", wantLast: ""},
		{name: "only last name", raw: map[string]any{"lastName": "Doe"}, wantFirst: "Unknown", wantLast: "Doe"},
		{name: "non-string name", raw: map[string]any{"name": 42}, wantFirst: "Unknown", wantLast: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NormalizeClient("id", tt.raw)
			assert.Equal(t, tt.wantFirst, c.FirstName)
			assert.Equal(t, tt.wantLast, c.LastName)
		})
	}
}

func TestNormalizeClient_Status(t *testing.T) {
	tests := map[any]model.ClientStatus{
		"Active":   model.StatusActive,
		"dispute":  model.StatusDispute,
		"ARCHIVED": model.StatusArchived,
		"vip":      model.StatusLead,
		nil:        model.StatusLead,
		7:          model.StatusLead,
	}
	for in, want := range tests {
		c := NormalizeClient("id", map[string]any{"status": in})
		assert.Equal(t, want, c.Status, "status %v", in)
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in   any
		want *int
		name string
	}{
		{name: "int", in: 700, want: intp(700)},
		{name: "float", in: float64(655), want: intp(655)},
		{name: "rounded float", in: 689.6, want: intp(690)},
		{name: "zero", in: float64(0), want: intp(0)},
		{name: "json number", in: json.Number("701"), want: intp(701)},
		{name: "numeric string", in: " 640 ", want: intp(640)},
		{name: "fico8 object", in: map[string]any{"fico8": float64(720)}, want: intp(720)},
		{name: "score object", in: map[string]any{"score": "615"}, want: intp(615)},
		{name: "value object", in: map[string]any{"value": float64(0)}, want: intp(0)},
		{name: "first subfield wins", in: map[string]any{"value": 1, "fico_score_8": 2}, want: intp(2)},
		{name: "object without score", in: map[string]any{"date": "2024-01-01"}},
		{name: "null", in: nil},
		{name: "text", in: "pending"},
		{name: "bool", in: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseScore(tt.in))
		})
	}
}

func TestNormalizeClient_LowercaseTransunionKey(t *testing.T) {
	c := NormalizeClient("id", map[string]any{"scores": map[string]any{"transunion": float64(690)}})
	require.NotNil(t, c.Scores.TransUnion)
	assert.Equal(t, 690, *c.Scores.TransUnion)
}

func TestNormalizeClient_LastMessage(t *testing.T) {
	assert.Equal(t, "hello", NormalizeClient("id", map[string]any{"lastMessage": "hello"}).LastMessage)
	assert.Equal(t, "hi there", NormalizeClient("id", map[string]any{
		"lastMessage": map[string]any{"text": "hi there", "sender": "admin"},
	}).LastMessage)
	assert.Equal(t, "", NormalizeClient("id", map[string]any{"lastMessage": map[string]any{"body": "x"}}).LastMessage)
	assert.Equal(t, "", NormalizeClient("id", map[string]any{"lastMessage": 12}).LastMessage)
}

func TestSortClients(t *testing.T) {
	clients := []model.Client{
		{ID: "3", FirstName: "zed"},
		{ID: "2", FirstName: "Amy", LastName: "Zhu"},
		{ID: "5", FirstName: "bob", IsPinned: true},
		{ID: "1", FirstName: "amy", LastName: "zhu"},
		{ID: "4", FirstName: "Al", IsPinned: true},
	}
	SortClients(clients)

	ids := make([]string, len(clients))
	for i, c := range clients {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"4", "5", "1", "2", "3"}, ids)
}
