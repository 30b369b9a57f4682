package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClientStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   ClientStatus
		wantOK bool
	}{
		{in: "Active", want: StatusActive, wantOK: true},
		{in: "dispute", want: StatusDispute, wantOK: true},
		{in: "  ARCHIVED ", want: StatusArchived, wantOK: true},
		{in: "onboarding", want: StatusOnboarding, wantOK: true},
		{in: "vip", wantOK: false},
		{in: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseClientStatus(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBureau(t *testing.T) {
	for in, want := range map[string]Bureau{
		"Experian":    BureauExperian,
		"EQUIFAX":     BureauEquifax,
		"transUnion":  BureauTransUnion,
		"Trans Union": BureauTransUnion,
		"trans_union": BureauTransUnion,
	} {
		got, ok := ParseBureau(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseBureau("innovis")
	assert.False(t, ok)
}

func TestClient_DisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", Client{FirstName: "Jane", LastName: "Doe"}.DisplayName())
	assert.Equal(t, "Unknown", Client{FirstName: "Unknown"}.DisplayName())
}

func TestLenderRelationship_Validate(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		lender  LenderRelationship
		wantErr bool
	}{
		{
			name:   "valid",
			lender: LenderRelationship{Institution: "Navy Federal", Tier: Tier1, MinScore: 680},
		},
		{
			name:   "tier may be empty",
			lender: LenderRelationship{Institution: "Local CU"},
		},
		{
			name:    "missing institution",
			lender:  LenderRelationship{Tier: Tier2},
			wantErr: true,
			errMsg:  "institution is required",
		},
		{
			name:    "unknown tier",
			lender:  LenderRelationship{Institution: "X", Tier: "Tier 9"},
			wantErr: true,
			errMsg:  `unknown tier "Tier 9"`,
		},
		{
			name:    "score out of range",
			lender:  LenderRelationship{Institution: "X", MinScore: 900},
			wantErr: true,
			errMsg:  "minimum score must be between 0 and 850, got 900",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lender.Validate()
			if tt.wantErr {
				assert.EqualError(t, err, tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAuditResult_NeedsResearch(t *testing.T) {
	var nilResult *AuditResult
	assert.False(t, nilResult.NeedsResearch())

	r := &AuditResult{Accounts: []AccountFinding{{RowID: "a"}, {RowID: "b"}}}
	assert.False(t, r.NeedsResearch())

	r.Accounts[1].ResearchNeeded = true
	assert.True(t, r.NeedsResearch())
}

func TestReadiness_Complete(t *testing.T) {
	assert.False(t, Readiness{}.Complete())
	assert.False(t, Readiness{Checklist: map[string]bool{"ein": true, "duns": false}}.Complete())
	assert.True(t, Readiness{Checklist: map[string]bool{"ein": true, "duns": true}}.Complete())
}
