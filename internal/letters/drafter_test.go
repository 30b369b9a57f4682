package letters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/llm"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/testutil"
)

type stubLLM struct {
	err      error
	response string
	last     llm.Request
}

func (s *stubLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	s.last = req
	return s.response, s.err
}

func (s *stubLLM) Engine() string { return "stub:writer" }

func accounts() []model.MergedAccount {
	return []model.MergedAccount{
		{RowID: "row-1", CreditorName: "CAPITAL ONE", AccountNumber: "517805****", AccountType: "Revolving"},
		{RowID: "row-2", CreditorName: "MIDLAND CREDIT"},
	}
}

func TestDrafter_Draft(t *testing.T) {
	stub := &stubLLM{response: "```json\n{\"evidenceGuide\": \" Enclose ID. \", \"letterBody\": \"To Experian,\\nI dispute...\"}\n```"}
	d, err := NewDrafter(stub, nil, nil)
	require.NoError(t, err)

	letter, err := d.Draft(context.Background(), Request{
		ClientID:   "c1",
		Bureau:     "Experian",
		ReportDate: "2024-05-20",
		Round:      2,
		Context:    "Client paid this off in 2022.",
		Accounts:   accounts(),
	})
	require.NoError(t, err)

	assert.Equal(t, model.BureauExperian, letter.Bureau)
	assert.Equal(t, "Enclose ID.", letter.EvidenceGuide)
	assert.Equal(t, "To Experian,\nI dispute...", letter.LetterBody)
	assert.Equal(t, "stub:writer", letter.Engine)
	assert.Equal(t, 2, letter.Round)
	assert.Equal(t, []string{"row-1", "row-2"}, letter.AccountRowIDs)

	assert.True(t, stub.last.JSON)
	assert.Contains(t, stub.last.Prompt, "dispute letter to Experian")
	assert.Contains(t, stub.last.Prompt, "report dated 2024-05-20")
	assert.Contains(t, stub.last.Prompt, "method of verification")
	assert.Contains(t, stub.last.Prompt, "Client paid this off in 2022.")
	assert.Contains(t, stub.last.Prompt, "- CAPITAL ONE (account 517805****), Revolving")
	assert.Contains(t, stub.last.Prompt, "- MIDLAND CREDIT\n")
}

func TestDrafter_RoundGuidance(t *testing.T) {
	assert.Contains(t, roundGuidance(1), "section 611")
	assert.Contains(t, roundGuidance(2), "method of verification")
	assert.Contains(t, roundGuidance(3), "CFPB")
	assert.Equal(t, roundGuidance(3), roundGuidance(7))
}

func TestDrafter_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "no client", req: Request{Bureau: "equifax", Round: 1, Accounts: accounts()}},
		{name: "nested client", req: Request{ClientID: "c1/letters/l1", Bureau: "equifax", Round: 1, Accounts: accounts()}},
		{name: "unknown bureau", req: Request{ClientID: "c1", Bureau: "innovis", Round: 1, Accounts: accounts()}},
		{name: "round zero", req: Request{ClientID: "c1", Bureau: "equifax", Accounts: accounts()}},
		{name: "no accounts", req: Request{ClientID: "c1", Bureau: "trans union", Round: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubLLM{}
			d, err := NewDrafter(stub, nil, nil)
			require.NoError(t, err)

			_, err = d.Draft(context.Background(), tt.req)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
			assert.Empty(t, stub.last.Prompt)
		})
	}
}

func TestDrafter_Errors(t *testing.T) {
	upstream := errors.New("overloaded")
	tests := []struct {
		name    string
		stub    *stubLLM
		wantErr error
	}{
		{name: "inference", stub: &stubLLM{err: upstream}, wantErr: common.ErrInference},
		{name: "not json", stub: &stubLLM{response: "Dear Equifax"}, wantErr: common.ErrMalformedOutput},
		{name: "empty body", stub: &stubLLM{response: `{"evidenceGuide":"x","letterBody":" "}`}, wantErr: common.ErrMalformedOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDrafter(tt.stub, nil, nil)
			require.NoError(t, err)

			_, err = d.Draft(context.Background(), Request{ClientID: "c1", Bureau: "equifax", Round: 1, Accounts: accounts()})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDrafter_SaveAndList(t *testing.T) {
	store := testutil.SetupTestStore(t)
	d, err := NewDrafter(&stubLLM{}, store, nil)
	require.NoError(t, err)

	letter := &model.Letter{Bureau: model.BureauEquifax, Round: 1, LetterBody: "body", EvidenceGuide: "guide", AccountRowIDs: []string{"row-1"}}
	id, err := d.Save(context.Background(), "c1", letter)
	require.NoError(t, err)

	saved := testutil.MustGet(t, store, LettersPath("c1")+"/"+id)
	assert.Equal(t, "equifax", saved["bureau"])
	assert.Equal(t, "2024-06-01T12:00:00Z", saved["createdAt"])

	letters, err := d.Letters(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, id, letters[0].ID)
	assert.Equal(t, "body", letters[0].LetterBody)
	assert.Equal(t, []string{"row-1"}, letters[0].AccountRowIDs)

	_, err = d.Save(context.Background(), "c1", &model.Letter{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = d.Save(context.Background(), "", letter)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = d.Save(context.Background(), "c1/tasks/t1", letter)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, 1, testutil.Count(t, store, LettersPath("c1")))
}

func TestDrafter_SaveWithoutStore(t *testing.T) {
	d, err := NewDrafter(&stubLLM{}, nil, nil)
	require.NoError(t, err)

	_, err = d.Save(context.Background(), "c1", &model.Letter{LetterBody: "x"})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}
