package functions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/letters"
	"github.com/Veraticus/clientdesk/internal/model"
)

type mockAuditor struct {
	mock.Mock
}

func (m *mockAuditor) Run(ctx context.Context, clientID string, accounts []model.MergedAccount) (*model.AuditResult, error) {
	args := m.Called(ctx, clientID, accounts)
	result, _ := args.Get(0).(*model.AuditResult)
	return result, args.Error(1)
}

type mockDrafter struct {
	mock.Mock
}

func (m *mockDrafter) Draft(ctx context.Context, req letters.Request) (*model.Letter, error) {
	args := m.Called(ctx, req)
	letter, _ := args.Get(0).(*model.Letter)
	return letter, args.Error(1)
}

func (m *mockDrafter) Save(ctx context.Context, clientID string, letter *model.Letter) (string, error) {
	args := m.Called(ctx, clientID, letter)
	return args.String(0), args.Error(1)
}

func post(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	srv := NewServer(nil, nil, nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestForensicAudit(t *testing.T) {
	auditor := &mockAuditor{}
	accounts := []model.MergedAccount{{RowID: "row-1", CreditorName: "CAPITAL ONE"}}
	result := &model.AuditResult{
		Summary:  model.AuditSummary{ViolationCount: 1},
		Accounts: []model.AccountFinding{{RowID: "row-1", AccountName: "Capital One", Violations: []model.Violation{{Law: "FCRA", Error: "e"}}}},
	}
	auditor.On("Run", mock.Anything, "c1", accounts).Return(result, nil)

	srv := NewServer(auditor, nil, nil)
	rec := post(t, srv.Routes(), "/functions/forensicAudit",
		`{"clientId":"c1","selectedAccounts":[{"rowId":"row-1","creditorName":"CAPITAL ONE"}]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	fa, ok := body["forensic_audit"].(map[string]any)
	require.True(t, ok)
	accountsOut := fa["accounts"].([]any)
	require.Len(t, accountsOut, 1)
	assert.Equal(t, "row-1", accountsOut[0].(map[string]any)["row_id"])
	assert.EqualValues(t, 1, fa["summary"].(map[string]any)["violation_count"])
	auditor.AssertExpectations(t)
}

func TestForensicAudit_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "invalid input", err: fmt.Errorf("%w: no accounts selected", common.ErrInvalidInput), status: http.StatusBadRequest},
		{name: "inference", err: fmt.Errorf("%w: status 500", common.ErrInference), status: http.StatusBadGateway},
		{name: "malformed", err: fmt.Errorf("%w: bad json", common.ErrMalformedOutput), status: http.StatusBadGateway},
		{name: "not found", err: fmt.Errorf("document clients/x: %w", common.ErrNotFound), status: http.StatusNotFound},
		{name: "timeout", err: context.DeadlineExceeded, status: http.StatusGatewayTimeout},
		{name: "other", err: errors.New("disk full"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := &mockAuditor{}
			auditor.On("Run", mock.Anything, "c1", mock.Anything).Return(nil, tt.err)

			rec := post(t, NewServer(auditor, nil, nil).Routes(), "/functions/forensicAudit", `{"clientId":"c1","selectedAccounts":[]}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.err.Error(), decodeBody(t, rec)["error"])
		})
	}
}

func TestForensicAudit_BadBody(t *testing.T) {
	auditor := &mockAuditor{}
	rec := post(t, NewServer(auditor, nil, nil).Routes(), "/functions/forensicAudit", `{"clientId":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "invalid request body")
	auditor.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnconfiguredFunctions(t *testing.T) {
	handler := NewServer(nil, nil, nil).Routes()

	assert.Equal(t, http.StatusServiceUnavailable, post(t, handler, "/functions/forensicAudit", `{}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, handler, "/functions/draftLetter", `{}`).Code)
}

func TestDraftLetter(t *testing.T) {
	drafter := &mockDrafter{}
	letter := &model.Letter{Bureau: model.BureauEquifax, Round: 1, EvidenceGuide: "Enclose ID", LetterBody: "Dear Equifax"}
	drafter.On("Draft", mock.Anything, letters.Request{
		ClientID:   "c1",
		Bureau:     "equifax",
		ReportDate: "2024-05-20",
		Round:      1,
		Context:    "paid",
		Accounts:   []model.MergedAccount{{RowID: "row-1"}},
	}).Return(letter, nil)

	rec := post(t, NewServer(nil, drafter, nil).Routes(), "/functions/draftLetter",
		`{"clientId":"c1","bureau":"equifax","reportDate":"2024-05-20","round":1,"context":"paid","selectedAccounts":[{"rowId":"row-1"}]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Enclose ID", body["evidenceGuide"])
	assert.Equal(t, "Dear Equifax", body["letterBody"])
	assert.NotContains(t, body, "id")
	drafter.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestDraftLetter_Save(t *testing.T) {
	drafter := &mockDrafter{}
	letter := &model.Letter{LetterBody: "Dear Experian"}
	drafter.On("Draft", mock.Anything, mock.Anything).Return(letter, nil)
	drafter.On("Save", mock.Anything, "c1", letter).Return("letter-9", nil)

	rec := post(t, NewServer(nil, drafter, nil).Routes(), "/functions/draftLetter",
		`{"clientId":"c1","bureau":"experian","round":2,"selectedAccounts":[{"rowId":"r"}],"save":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "letter-9", decodeBody(t, rec)["id"])
	drafter.AssertExpectations(t)
}

func TestDraftLetter_InvalidInput(t *testing.T) {
	drafter := &mockDrafter{}
	drafter.On("Draft", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: unknown bureau \"innovis\"", common.ErrInvalidInput))

	rec := post(t, NewServer(nil, drafter, nil).Routes(), "/functions/draftLetter", `{"clientId":"c1","bureau":"innovis"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "innovis")
}
