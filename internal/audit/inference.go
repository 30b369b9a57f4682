package audit

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/Veraticus/clientdesk/internal/llm"
	"github.com/Veraticus/clientdesk/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const systemPrompt = "You are a forensic credit report auditor working for a consumer credit repair firm. " +
	"You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, markdown formatting, " +
	"or commentary before or after the JSON."

// Envelope is the wire shape of an audit response.
type Envelope struct {
	ForensicAudit *model.AuditResult `json:"forensic_audit"`
}

// LLMInference implements Inference on a language model client.
type LLMInference struct {
	client llm.Client
	prompt *template.Template
}

var _ Inference = (*LLMInference)(nil)

// NewLLMInference loads the audit prompt and binds it to client.
func NewLLMInference(client llm.Client) (*LLMInference, error) {
	if client == nil {
		return nil, fmt.Errorf("LLM client dependency is required")
	}
	tmpl, err := template.New("forensic_audit.tmpl").ParseFS(templateFS, "templates/forensic_audit.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template forensic_audit: %w", err)
	}
	return &LLMInference{client: client, prompt: tmpl}, nil
}

// Engine reports the model identifier of the underlying client.
func (i *LLMInference) Engine() string {
	return i.client.Engine()
}

type promptData struct {
	ClientID             string
	AccountsJSON         string
	SupplementaryContext string
	Accounts             []model.MergedAccount
}

// BuildPrompt renders the audit prompt for req.
func (i *LLMInference) BuildPrompt(req Request) (string, error) {
	accountsJSON, err := json.MarshalIndent(req.Accounts, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode accounts: %w", err)
	}

	var buf bytes.Buffer
	if err := i.prompt.Execute(&buf, promptData{
		ClientID:             req.ClientID,
		AccountsJSON:         string(accountsJSON),
		SupplementaryContext: req.SupplementaryContext,
		Accounts:             req.Accounts,
	}); err != nil {
		return "", fmt.Errorf("failed to execute template forensic_audit: %w", err)
	}
	return buf.String(), nil
}

// ForensicAudit runs one audit pass.
func (i *LLMInference) ForensicAudit(ctx context.Context, req Request) (*model.AuditResult, error) {
	prompt, err := i.BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	text, err := i.client.Complete(ctx, llm.Request{System: systemPrompt, Prompt: prompt, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInference, err)
	}

	return DecodeEnvelope([]byte(llm.CleanMarkdownWrapper(text)))
}

// DecodeEnvelope strictly decodes a {"forensic_audit": {...}} document.
func DecodeEnvelope(data []byte) (*model.AuditResult, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var env Envelope
	if err := decoder.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: failed to parse audit JSON: %w", common.ErrMalformedOutput, err)
	}
	if env.ForensicAudit == nil {
		return nil, fmt.Errorf("%w: missing forensic_audit", common.ErrMalformedOutput)
	}

	for idx, account := range env.ForensicAudit.Accounts {
		if account.RowID == "" {
			return nil, fmt.Errorf("%w: account at index %d has no row_id", common.ErrMalformedOutput, idx)
		}
		for vIdx, v := range account.Violations {
			if v.Law == "" || v.Error == "" {
				return nil, fmt.Errorf("%w: violation %d of %s needs law and error", common.ErrMalformedOutput, vIdx, account.RowID)
			}
		}
	}
	return env.ForensicAudit, nil
}
