package sheets

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

type fakeAPI struct {
	existsErr   error
	updateErrs  []error
	created     []string
	cleared     []string
	updates     map[string][][]any
	formatCalls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(map[string][][]any)}
}

func (f *fakeAPI) Exists(_ context.Context, _ string) error { return f.existsErr }

func (f *fakeAPI) Create(_ context.Context, title, _, _ string) (string, string, error) {
	f.created = append(f.created, title)
	return "sheet-1", "https://sheets.example/sheet-1", nil
}

func (f *fakeAPI) Clear(_ context.Context, _, rng string) error {
	f.cleared = append(f.cleared, rng)
	return nil
}

func (f *fakeAPI) Update(_ context.Context, _, rng string, values [][]any) error {
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	f.updates[rng] = values
	return nil
}

func (f *fakeAPI) BatchUpdate(_ context.Context, _ string, _ []*sheets.Request) error {
	f.formatCalls++
	return nil
}

func intPtr(v int) *int { return &v }

func rosterClients() []model.Client {
	return []model.Client{
		{ID: "c1", FirstName: "zed", LastName: "Young", Email: "z@example.com", Status: model.StatusLead},
		{ID: "c2", FirstName: "Ann", LastName: "Baker", Email: "a@example.com", Status: model.StatusActive,
			Scores: model.Scores{Experian: intPtr(0), Equifax: intPtr(640)}},
		{ID: "c3", FirstName: "Mo", LastName: "Diaz", Status: model.StatusDispute, IsPinned: true,
			Scores: model.Scores{TransUnion: intPtr(701)}},
	}
}

func TestRosterRows(t *testing.T) {
	rows := RosterRows(rosterClients())

	require.Len(t, rows, 4)
	assert.Equal(t, RosterHeader, rows[0])
	assert.Equal(t, []any{"Mo Diaz", "", "Dispute", "", "", 701, "Yes"}, rows[1])
	assert.Equal(t, []any{"Ann Baker", "a@example.com", "Active", 0, 640, "", "No"}, rows[2])
	assert.Equal(t, "zed Young", rows[3][0])
}

func TestRosterRows_Empty(t *testing.T) {
	rows := RosterRows(nil)
	require.Len(t, rows, 1)
	assert.Equal(t, RosterHeader, rows[0])
}

func TestWriteRoster_CreatesSpreadsheetAndWritesRows(t *testing.T) {
	api := newFakeAPI()
	cfg := DefaultConfig()
	w := newWriter(api, cfg, nil)

	id, err := w.WriteRoster(context.Background(), rosterClients())
	require.NoError(t, err)

	assert.Equal(t, "sheet-1", id)
	assert.Equal(t, []string{"Client Roster"}, api.created)
	assert.Equal(t, []string{"'Roster'!A:Z"}, api.cleared)
	require.Contains(t, api.updates, "'Roster'!A1")
	assert.Len(t, api.updates["'Roster'!A1"], 4)
	assert.Equal(t, 1, api.formatCalls)
}

func TestWriteRoster_UsesExistingSpreadsheet(t *testing.T) {
	api := newFakeAPI()
	cfg := DefaultConfig()
	cfg.SpreadsheetID = "existing"
	cfg.EnableFormatting = false
	w := newWriter(api, cfg, nil)

	id, err := w.WriteRoster(context.Background(), rosterClients())
	require.NoError(t, err)

	assert.Equal(t, "existing", id)
	assert.Empty(t, api.created)
	assert.Zero(t, api.formatCalls)
}

func TestWriteRoster_Batches(t *testing.T) {
	api := newFakeAPI()
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	w := newWriter(api, cfg, nil)

	_, err := w.WriteRoster(context.Background(), rosterClients())
	require.NoError(t, err)

	assert.Len(t, api.updates["'Roster'!A1"], 2)
	assert.Len(t, api.updates["'Roster'!A3"], 2)
}

func TestWriteRoster_RetriesServerErrors(t *testing.T) {
	api := newFakeAPI()
	api.updateErrs = []error{&googleapi.Error{Code: http.StatusServiceUnavailable}}
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	w := newWriter(api, cfg, nil)

	_, err := w.WriteRoster(context.Background(), rosterClients())
	require.NoError(t, err)
	assert.Len(t, api.updates["'Roster'!A1"], 4)
}

func TestWriteRoster_DoesNotRetryClientErrors(t *testing.T) {
	api := newFakeAPI()
	api.updateErrs = []error{&googleapi.Error{Code: http.StatusForbidden}}
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	w := newWriter(api, cfg, nil)

	_, err := w.WriteRoster(context.Background(), rosterClients())
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrMaxRetries)
	assert.Empty(t, api.updates)
}

func TestWriteRoster_InaccessibleSpreadsheet(t *testing.T) {
	api := newFakeAPI()
	api.existsErr = &googleapi.Error{Code: http.StatusNotFound}
	cfg := DefaultConfig()
	cfg.SpreadsheetID = "missing"
	w := newWriter(api, cfg, nil)

	_, err := w.WriteRoster(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to access spreadsheet missing")
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(&googleapi.Error{Code: http.StatusTooManyRequests}), common.ErrRateLimit)

	var re *common.RetryableError
	require.ErrorAs(t, classify(&googleapi.Error{Code: http.StatusBadRequest}), &re)
	assert.False(t, re.Retryable)
	require.ErrorAs(t, classify(context.Canceled), &re)
	assert.False(t, re.Retryable)

	plain := errors.New("connection reset")
	assert.Same(t, plain, classify(plain))
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

	require.NoError(t, SaveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.Equal(t, "access", loaded.AccessToken)
}

func TestAuthorizeInteractive_RequiresCredentials(t *testing.T) {
	_, err := AuthorizeInteractive(context.Background(), OAuth2Config{}, func(string) {}, nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}
