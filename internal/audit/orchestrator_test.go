package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/storage"
	"github.com/Veraticus/clientdesk/internal/testutil"
)

type fakeInference struct {
	onCall   func(Request)
	results  []*model.AuditResult
	errs     []error
	requests []Request
}

func (f *fakeInference) ForensicAudit(_ context.Context, req Request) (*model.AuditResult, error) {
	n := len(f.requests)
	f.requests = append(f.requests, req)
	if f.onCall != nil {
		f.onCall(req)
	}
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	if n < len(f.results) {
		return f.results[n], nil
	}
	return nil, errors.New("unexpected inference call")
}

func (f *fakeInference) Engine() string { return "fake:auditor" }

type fakeReferences struct {
	err    error
	docs   []model.LawDoc
	limits []int
}

func (f *fakeReferences) References(_ context.Context, limit int) ([]model.LawDoc, error) {
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func testAccounts() []model.MergedAccount {
	return []model.MergedAccount{
		{
			RowID:         "row-1",
			CreditorName:  "CAPITAL ONE",
			AccountNumber: "517805****",
			AccountType:   "Revolving",
			Bureaus: map[model.Bureau]model.BureauSnapshot{
				model.BureauExperian: {Status: "Open", Balance: 1200, Limit: 3000},
				model.BureauEquifax:  {Status: "Closed", Balance: 1200, Limit: 3000},
			},
		},
		{
			RowID:        "row-2",
			CreditorName: "MIDLAND CREDIT",
			AccountType:  "Collection",
			Bureaus: map[model.Bureau]model.BureauSnapshot{
				model.BureauTransUnion: {Status: "Collection", Balance: 840},
			},
		},
	}
}

func passResult(tag string, research bool) *model.AuditResult {
	return &model.AuditResult{
		Summary: model.AuditSummary{Overview: tag, ViolationCount: 1, SeverityScore: 40},
		Accounts: []model.AccountFinding{
			{
				RowID:       "row-1",
				AccountName: "Capital One " + tag,
				Summary:     "status mismatch " + tag,
				Violations: []model.Violation{{
					Law:             "FCRA 623(a)(2)",
					Error:           "Open at Experian, closed at Equifax",
					DisputeAction:   "Dispute status with Experian",
					AffectedBureaus: []string{"experian", "equifax"},
				}},
			},
			{
				RowID:          "row-2",
				AccountName:    "Midland " + tag,
				Summary:        "collection " + tag,
				ResearchNeeded: research,
			},
		},
	}
}

func newTestOrchestrator(t *testing.T, inf Inference, refs ReferenceSource) (*Orchestrator, *storage.SQLiteStorage) {
	t.Helper()
	store := testutil.SetupTestStore(t)
	o, err := NewOrchestrator(Deps{Store: store, Inference: inf, References: refs})
	require.NoError(t, err)
	return o, store
}

func analysisOf(t *testing.T, data map[string]any) map[string]any {
	t.Helper()
	analysis, ok := data["analysis"].(map[string]any)
	require.True(t, ok, "analysis missing: %v", data)
	return analysis
}

func TestDeps_Validate(t *testing.T) {
	store := testutil.SetupTestStore(t)
	tests := []struct {
		name    string
		deps    Deps
		wantErr string
	}{
		{name: "no store", deps: Deps{Inference: &fakeInference{}, References: &fakeReferences{}}, wantErr: "store"},
		{name: "no inference", deps: Deps{Store: store, References: &fakeReferences{}}, wantErr: "inference"},
		{name: "no references", deps: Deps{Store: store, Inference: &fakeInference{}}, wantErr: "reference"},
		{name: "negative max", deps: Deps{Store: store, Inference: &fakeInference{}, References: &fakeReferences{}, MaxReferences: -1}, wantErr: "negative"},
		{name: "valid", deps: Deps{Store: store, Inference: &fakeInference{}, References: &fakeReferences{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrchestrator(tt.deps)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_SinglePassWhenNoResearch(t *testing.T) {
	inf := &fakeInference{results: []*model.AuditResult{passResult("p1", false)}}
	refs := &fakeReferences{docs: []model.LawDoc{{Title: "FCRA", Content: "text"}}}
	o, store := newTestOrchestrator(t, inf, refs)

	result, err := o.Run(context.Background(), "c1", testAccounts())
	require.NoError(t, err)
	assert.Equal(t, passResult("p1", false), result)

	require.Len(t, inf.requests, 1)
	assert.Empty(t, inf.requests[0].SupplementaryContext)
	assert.Equal(t, "c1", inf.requests[0].ClientID)
	assert.Empty(t, refs.limits, "references must not be fetched")

	doc := testutil.MustGet(t, store, FindingPath("c1", "row-1"))
	assert.Equal(t, "analyzed", doc["status"])
	assert.Equal(t, "fake:auditor", doc["engine"])
	assert.Equal(t, true, doc["analysisRan"])
	assert.Equal(t, "row-1", doc["rowId"])
	assert.Equal(t, "2024-06-01T12:00:00Z", doc["auditedAt"])

	analysis := analysisOf(t, doc)
	assert.Equal(t, "Capital One p1", analysis["account_name"])
	assert.Equal(t, "status mismatch p1", analysis["summary"])
	assert.Equal(t, false, analysis["research_needed"])
	violations, ok := analysis["violations"].([]any)
	require.True(t, ok)
	require.Len(t, violations, 1)
	assert.Equal(t, "FCRA 623(a)(2)", violations[0].(map[string]any)["law"])

	empty := analysisOf(t, testutil.MustGet(t, store, FindingPath("c1", "row-2")))
	assert.Equal(t, []any{}, empty["violations"])
}

func TestRun_ResearchTriggersSecondPass(t *testing.T) {
	inf := &fakeInference{results: []*model.AuditResult{passResult("p1", true), passResult("p2", false)}}
	refs := &fakeReferences{docs: []model.LawDoc{
		{Title: "Fair Credit Reporting Act", Citation: "15 U.S.C. 1681", Content: "Section 623 duties of furnishers."},
		{Title: "Empty", Content: "   "},
		{Title: "FDCPA", Content: "Validation of debts."},
	}}
	o, store := newTestOrchestrator(t, inf, refs)

	result, err := o.Run(context.Background(), "c1", testAccounts())
	require.NoError(t, err)
	assert.Equal(t, "p2", result.Summary.Overview)

	require.Len(t, inf.requests, 2)
	assert.Equal(t, []int{DefaultMaxReferences}, refs.limits)
	assert.Equal(t, inf.requests[0].Accounts, inf.requests[1].Accounts)
	assert.Equal(t,
		"### Fair Credit Reporting Act (15 U.S.C. 1681)\nSection 623 duties of furnishers.\n\n### FDCPA\nValidation of debts.",
		inf.requests[1].SupplementaryContext)

	for _, row := range []string{"row-1", "row-2"} {
		analysis := analysisOf(t, testutil.MustGet(t, store, FindingPath("c1", row)))
		assert.Contains(t, analysis["account_name"], "p2", row)
		assert.Contains(t, analysis["summary"], "p2", row)
	}
}

func TestRun_ResearchWithEmptyLibraryKeepsFirstPass(t *testing.T) {
	inf := &fakeInference{results: []*model.AuditResult{passResult("p1", true)}}
	refs := &fakeReferences{}
	o, store := newTestOrchestrator(t, inf, refs)

	result, err := o.Run(context.Background(), "c1", testAccounts())
	require.NoError(t, err)
	assert.Equal(t, "p1", result.Summary.Overview)
	assert.Len(t, inf.requests, 1)
	assert.Len(t, refs.limits, 1)

	analysis := analysisOf(t, testutil.MustGet(t, store, FindingPath("c1", "row-2")))
	assert.Equal(t, true, analysis["research_needed"])
}

func TestRun_MarksAnalyzingBeforeFirstPass(t *testing.T) {
	var store *storage.SQLiteStorage
	inf := &fakeInference{results: []*model.AuditResult{passResult("p1", false)}}
	inf.onCall = func(Request) {
		for _, row := range []string{"row-1", "row-2"} {
			doc := testutil.MustGet(t, store, FindingPath("c1", row))
			assert.Equal(t, "analyzing", doc["status"])
			assert.NotContains(t, doc, "analysis")
		}
	}
	o, store := newTestOrchestrator(t, inf, &fakeReferences{})

	_, err := o.Run(context.Background(), "c1", testAccounts())
	require.NoError(t, err)
	require.Len(t, inf.requests, 1)
}

func TestRun_InferenceFailureWritesNoFindings(t *testing.T) {
	boom := errors.New("endpoint unavailable")
	tests := []struct {
		name string
		inf  *fakeInference
	}{
		{name: "pass 1 fails", inf: &fakeInference{errs: []error{boom}}},
		{name: "pass 2 fails", inf: &fakeInference{results: []*model.AuditResult{passResult("p1", true)}, errs: []error{nil, boom}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs := &fakeReferences{docs: []model.LawDoc{{Title: "FCRA", Content: "text"}}}
			o, store := newTestOrchestrator(t, tt.inf, refs)

			result, err := o.Run(context.Background(), "c1", testAccounts())
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			assert.Nil(t, result)

			for _, row := range []string{"row-1", "row-2"} {
				doc := testutil.MustGet(t, store, FindingPath("c1", row))
				assert.Equal(t, "failed", doc["status"])
				assert.Equal(t, "endpoint unavailable", doc["lastError"])
				assert.NotContains(t, doc, "analysis")
				assert.NotContains(t, doc, "auditedAt")
			}
		})
	}
}

func TestRun_ReferenceFailureAborts(t *testing.T) {
	inf := &fakeInference{results: []*model.AuditResult{passResult("p1", true)}}
	refs := &fakeReferences{err: errors.New("library offline")}
	o, store := newTestOrchestrator(t, inf, refs)

	_, err := o.Run(context.Background(), "c1", testAccounts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "library offline")
	assert.Len(t, inf.requests, 1)

	doc := testutil.MustGet(t, store, FindingPath("c1", "row-1"))
	assert.Equal(t, "failed", doc["status"])
	assert.NotContains(t, doc, "analysis")
}

func TestRun_MalformedOutput(t *testing.T) {
	tests := []struct {
		name   string
		result *model.AuditResult
	}{
		{name: "nil result", result: nil},
		{name: "unknown row id", result: &model.AuditResult{Accounts: []model.AccountFinding{{RowID: "row-9"}}}},
		{name: "duplicate row id", result: &model.AuditResult{Accounts: []model.AccountFinding{{RowID: "row-1"}, {RowID: "row-1"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inf := &fakeInference{results: []*model.AuditResult{tt.result}}
			o, store := newTestOrchestrator(t, inf, &fakeReferences{})

			_, err := o.Run(context.Background(), "c1", testAccounts())
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrMalformedOutput)

			doc := testutil.MustGet(t, store, FindingPath("c1", "row-1"))
			assert.Equal(t, "failed", doc["status"])
			assert.NotContains(t, doc, "analysis")
		})
	}
}

func TestRun_OmittedAccountMarkedFailed(t *testing.T) {
	partial := passResult("p1", false)
	partial.Accounts = partial.Accounts[:1]
	inf := &fakeInference{results: []*model.AuditResult{partial}}
	o, store := newTestOrchestrator(t, inf, &fakeReferences{})

	_, err := o.Run(context.Background(), "c1", testAccounts())
	require.NoError(t, err)

	assert.Equal(t, "analyzed", testutil.MustGet(t, store, FindingPath("c1", "row-1"))["status"])
	missing := testutil.MustGet(t, store, FindingPath("c1", "row-2"))
	assert.Equal(t, "failed", missing["status"])
	assert.Equal(t, errNotReturned, missing["lastError"])
}

func TestRun_MergesIntoExistingFinding(t *testing.T) {
	inf := &fakeInference{results: []*model.AuditResult{passResult("p1", false)}}
	o, store := newTestOrchestrator(t, inf, &fakeReferences{})
	testutil.Seed(t, store, map[string]map[string]any{
		FindingPath("c1", "row-1"): {
			"rowId":     "row-1",
			"note":      "client disputed in March",
			"status":    "failed",
			"lastError": "old failure",
			"analysis":  map[string]any{"violations": []any{map[string]any{"law": "old"}}, "reviewer": "kim"},
		},
	})

	_, err := o.Run(context.Background(), "c1", testAccounts())
	require.NoError(t, err)

	doc := testutil.MustGet(t, store, FindingPath("c1", "row-1"))
	assert.Equal(t, "client disputed in March", doc["note"])
	assert.Equal(t, "analyzed", doc["status"])
	assert.Equal(t, "", doc["lastError"])
	analysis := analysisOf(t, doc)
	assert.Equal(t, "kim", analysis["reviewer"])
	violations := analysis["violations"].([]any)
	require.Len(t, violations, 1)
	assert.Equal(t, "FCRA 623(a)(2)", violations[0].(map[string]any)["law"])
}

func TestRun_InvalidSelection(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
		accounts []model.MergedAccount
	}{
		{name: "no client", clientID: " ", accounts: testAccounts()},
		{name: "nested client id", clientID: "a/b/c", accounts: testAccounts()},
		{name: "empty selection", clientID: "c1"},
		{name: "missing row id", clientID: "c1", accounts: []model.MergedAccount{{CreditorName: "X"}}},
		{name: "slash in row id", clientID: "c1", accounts: []model.MergedAccount{{RowID: "a/b"}}},
		{name: "duplicate row id", clientID: "c1", accounts: []model.MergedAccount{{RowID: "r"}, {RowID: "r"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inf := &fakeInference{}
			o, store := newTestOrchestrator(t, inf, &fakeReferences{})

			_, err := o.Run(context.Background(), tt.clientID, tt.accounts)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
			assert.Empty(t, inf.requests)
			assert.Zero(t, testutil.Count(t, store, FindingsPath("c1")))
			assert.Zero(t, testutil.Count(t, store, "clients/a/b/c/account_audits"))
		})
	}
}

func TestFindings(t *testing.T) {
	inf := &fakeInference{results: []*model.AuditResult{passResult("p1", false)}}
	o, _ := newTestOrchestrator(t, inf, &fakeReferences{})

	_, err := o.Run(context.Background(), "c1", testAccounts())
	require.NoError(t, err)

	findings, err := o.Findings(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, "row-1", findings[0].RowID)
	assert.Equal(t, model.AuditAnalyzed, findings[0].Status)
	assert.Equal(t, "fake:auditor", findings[0].Engine)
	assert.True(t, findings[0].AnalysisRan)
	require.NotNil(t, findings[0].AuditedAt)
	assert.True(t, findings[0].AuditedAt.Equal(testutil.FixedTime))
	assert.Len(t, findings[0].Analysis.Violations, 1)
	assert.Equal(t, "Midland p1", findings[1].Analysis.AccountName)

	_, err = o.Findings(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = o.Findings(context.Background(), "c1/account_audits/row-1")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
