// Package letters drafts and stores credit bureau dispute letters.
package letters

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/template"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/llm"
	"github.com/Veraticus/clientdesk/internal/model"
	"github.com/Veraticus/clientdesk/internal/registry"
	"github.com/Veraticus/clientdesk/internal/service"
	"github.com/Veraticus/clientdesk/internal/storage"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Collection is the per-client sub-collection of saved letters.
const Collection = "letters"

const systemPrompt = "You draft consumer credit dispute letters under the FCRA. " +
	"You MUST respond with ONLY a valid JSON object and no surrounding commentary."

var bureauNames = map[model.Bureau]string{
	model.BureauExperian:   "Experian",
	model.BureauEquifax:    "Equifax",
	model.BureauTransUnion: "TransUnion",
}

// LettersPath returns the letters collection of a client.
func LettersPath(clientID string) string {
	return storage.Join(registry.ClientPath(clientID), Collection)
}

// Request holds the inputs of one letter draft.
type Request struct {
	ClientID   string
	Bureau     string
	ReportDate string
	Context    string
	Accounts   []model.MergedAccount
	Round      int
}

// Drafter produces dispute letters on a language model.
type Drafter struct {
	client llm.Client
	store  service.DocumentStore
	prompt *template.Template
	logger *slog.Logger
}

// NewDrafter creates a drafter. store is only needed by Save and Letters.
func NewDrafter(client llm.Client, store service.DocumentStore, logger *slog.Logger) (*Drafter, error) {
	if client == nil {
		return nil, fmt.Errorf("LLM client dependency is required")
	}
	tmpl, err := template.New("dispute_letter.tmpl").ParseFS(templateFS, "templates/dispute_letter.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template dispute_letter: %w", err)
	}
	return &Drafter{
		client: client,
		store:  store,
		prompt: tmpl,
		logger: common.LoggerOrDefault(logger),
	}, nil
}

type promptData struct {
	ClientID      string
	BureauName    string
	ReportDate    string
	RoundGuidance string
	Context       string
	Accounts      []model.MergedAccount
	Round         int
}

func roundGuidance(round int) string {
	switch round {
	case 1:
		return "Request investigation of each item under FCRA section 611 and deletion of anything that cannot be verified."
	case 2:
		return "The bureau already verified these items. Demand the method of verification under FCRA section 611(a)(7) and point out the prior dispute."
	default:
		return "Prior disputes were ignored. Cite the bureau's continued failure to comply, state intent to file a CFPB complaint, and reserve the right to pursue statutory damages under FCRA sections 616 and 617."
	}
}

// Draft asks the model for a letter and evidence guide. Nothing is stored.
func (d *Drafter) Draft(ctx context.Context, req Request) (*model.Letter, error) {
	bureau, err := validate(req)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := d.prompt.Execute(&buf, promptData{
		ClientID:      req.ClientID,
		BureauName:    bureauNames[bureau],
		ReportDate:    strings.TrimSpace(req.ReportDate),
		RoundGuidance: roundGuidance(req.Round),
		Context:       strings.TrimSpace(req.Context),
		Accounts:      req.Accounts,
		Round:         req.Round,
	}); err != nil {
		return nil, fmt.Errorf("failed to execute template dispute_letter: %w", err)
	}

	text, err := d.client.Complete(ctx, llm.Request{System: systemPrompt, Prompt: buf.String(), JSON: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInference, err)
	}

	var out struct {
		EvidenceGuide string `json:"evidenceGuide"`
		LetterBody    string `json:"letterBody"`
	}
	if err := json.Unmarshal([]byte(llm.CleanMarkdownWrapper(text)), &out); err != nil {
		return nil, fmt.Errorf("%w: failed to parse letter JSON: %w", common.ErrMalformedOutput, err)
	}
	if strings.TrimSpace(out.LetterBody) == "" {
		return nil, fmt.Errorf("%w: letter body is empty", common.ErrMalformedOutput)
	}

	rowIDs := make([]string, 0, len(req.Accounts))
	for _, a := range req.Accounts {
		if a.RowID != "" {
			rowIDs = append(rowIDs, a.RowID)
		}
	}

	d.logger.Info("Drafted dispute letter", "client_id", req.ClientID, "bureau", bureau, "round", req.Round)
	return &model.Letter{
		Bureau:        bureau,
		ReportDate:    strings.TrimSpace(req.ReportDate),
		Round:         req.Round,
		EvidenceGuide: strings.TrimSpace(out.EvidenceGuide),
		LetterBody:    strings.TrimSpace(out.LetterBody),
		Engine:        d.client.Engine(),
		AccountRowIDs: rowIDs,
	}, nil
}

func validate(req Request) (model.Bureau, error) {
	if err := common.ValidateID("client id", req.ClientID); err != nil {
		return "", err
	}
	bureau, ok := model.ParseBureau(req.Bureau)
	if !ok {
		return "", fmt.Errorf("%w: unknown bureau %q", common.ErrInvalidInput, req.Bureau)
	}
	if req.Round < 1 {
		return "", fmt.Errorf("%w: dispute round must be at least 1, got %d", common.ErrInvalidInput, req.Round)
	}
	if len(req.Accounts) == 0 {
		return "", fmt.Errorf("%w: no accounts selected", common.ErrInvalidInput)
	}
	return bureau, nil
}

// Save stores a drafted letter under the client and returns its id.
func (d *Drafter) Save(ctx context.Context, clientID string, letter *model.Letter) (string, error) {
	if d.store == nil {
		return "", fmt.Errorf("%w: letters store not configured", common.ErrMissingConfig)
	}
	if err := common.ValidateID("client id", clientID); err != nil {
		return "", err
	}
	if letter == nil || strings.TrimSpace(letter.LetterBody) == "" {
		return "", fmt.Errorf("%w: letter body is required", common.ErrInvalidInput)
	}

	fields, err := storage.ToFields(letter)
	if err != nil {
		return "", err
	}
	fields["createdAt"] = storage.ServerTimestamp

	id, err := d.store.Add(ctx, LettersPath(clientID), fields)
	if err != nil {
		return "", fmt.Errorf("failed to save letter: %w", err)
	}
	return id, nil
}

// Letters lists a client's saved letters, newest first.
func (d *Drafter) Letters(ctx context.Context, clientID string) ([]model.Letter, error) {
	if d.store == nil {
		return nil, fmt.Errorf("%w: letters store not configured", common.ErrMissingConfig)
	}
	return ListLetters(ctx, d.store, clientID)
}

// ListLetters reads a client's saved letters from store, newest first.
func ListLetters(ctx context.Context, store service.DocumentStore, clientID string) ([]model.Letter, error) {
	if err := common.ValidateID("client id", clientID); err != nil {
		return nil, err
	}
	docs, err := store.List(ctx, LettersPath(clientID))
	if err != nil {
		return nil, err
	}

	out := make([]model.Letter, 0, len(docs))
	for _, doc := range docs {
		var l model.Letter
		if err := doc.DataTo(&l); err != nil {
			return nil, fmt.Errorf("failed to decode letter %s: %w", doc.Path, err)
		}
		l.ID = doc.ID
		out = append(out, l)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(letters []model.Letter) {
	sort.SliceStable(letters, func(i, j int) bool {
		a, b := letters[i].CreatedAt, letters[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
