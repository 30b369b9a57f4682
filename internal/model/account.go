package model

import "time"

// Bureau names one of the three consumer credit bureaus.
type Bureau string

const (
	// BureauExperian is Experian.
	BureauExperian Bureau = "experian"
	// BureauEquifax is Equifax.
	BureauEquifax Bureau = "equifax"
	// BureauTransUnion is TransUnion.
	BureauTransUnion Bureau = "transUnion"
)

// Bureaus lists the bureaus in report order.
var Bureaus = []Bureau{BureauExperian, BureauEquifax, BureauTransUnion}

// ParseBureau matches s against the known bureau names, ignoring case.
func ParseBureau(s string) (Bureau, bool) {
	switch normalizeKey(s) {
	case "experian":
		return BureauExperian, true
	case "equifax":
		return BureauEquifax, true
	case "transunion":
		return BureauTransUnion, true
	}
	return "", false
}

func normalizeKey(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+('a'-'A'))
		case c == ' ' || c == '_' || c == '-':
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// BureauSnapshot is how one bureau reports a tradeline.
type BureauSnapshot struct {
	Status         string  `json:"status"`
	PaymentHistory string  `json:"paymentHistory,omitempty"`
	DisputeStatus  string  `json:"disputeStatus,omitempty"`
	Balance        float64 `json:"balance"`
	Limit          float64 `json:"limit"`
}

// MergedAccount is one tradeline unified across the bureaus that report it.
// RowID is unique within an audit session and keys persisted findings.
type MergedAccount struct {
	Bureaus       map[Bureau]BureauSnapshot `json:"bureaus"`
	RowID         string                    `json:"rowId"`
	CreditorName  string                    `json:"creditorName"`
	AccountNumber string                    `json:"accountNumber"`
	AccountType   string                    `json:"accountType"`
	DateOpened    string                    `json:"dateOpened,omitempty"`
	DateClosed    string                    `json:"dateClosed,omitempty"`
	AnalysisRan   bool                      `json:"analysisRan"`
}

// Violation is a single compliance problem found on an account.
type Violation struct {
	Law             string   `json:"law"`
	Error           string   `json:"error"`
	DisputeAction   string   `json:"dispute_action"`
	ComplianceCode  string   `json:"compliance_code,omitempty"`
	AffectedBureaus []string `json:"affected_bureaus,omitempty"`
}

// AccountFinding is the audit output for one account.
type AccountFinding struct {
	RowID          string      `json:"row_id"`
	AccountName    string      `json:"account_name"`
	Summary        string      `json:"summary,omitempty"`
	Violations     []Violation `json:"violations"`
	ResearchNeeded bool        `json:"research_needed"`
}

// AuditSummary aggregates the findings of an audit.
type AuditSummary struct {
	Overview       string `json:"overview,omitempty"`
	ViolationCount int    `json:"violation_count"`
	SeverityScore  int    `json:"severity_score"`
}

// AuditResult is the structured output of a forensic audit.
type AuditResult struct {
	Summary  AuditSummary     `json:"summary"`
	Accounts []AccountFinding `json:"accounts"`
}

// NeedsResearch reports whether any account asked for supplementary context.
func (r *AuditResult) NeedsResearch() bool {
	if r == nil {
		return false
	}
	for _, a := range r.Accounts {
		if a.ResearchNeeded {
			return true
		}
	}
	return false
}

// AuditStatus tracks a persisted finding through an audit run.
type AuditStatus string

const (
	// AuditAnalyzing marks accounts submitted to a running audit.
	AuditAnalyzing AuditStatus = "analyzing"
	// AuditAnalyzed marks accounts whose findings were written.
	AuditAnalyzed AuditStatus = "analyzed"
	// AuditFailed marks accounts whose audit aborted.
	AuditFailed AuditStatus = "failed"
)

// StoredFinding is a finding as persisted under a client's account_audits.
type StoredFinding struct {
	AuditedAt   *time.Time     `json:"auditedAt,omitempty"`
	Analysis    StoredAnalysis `json:"analysis"`
	RowID       string         `json:"rowId"`
	Status      AuditStatus    `json:"status"`
	Engine      string         `json:"engine,omitempty"`
	LastError   string         `json:"lastError,omitempty"`
	AnalysisRan bool           `json:"analysisRan"`
}

// StoredAnalysis is the analysis block of a StoredFinding.
type StoredAnalysis struct {
	AccountName    string      `json:"account_name"`
	Summary        string      `json:"summary,omitempty"`
	Violations     []Violation `json:"violations"`
	ResearchNeeded bool        `json:"research_needed"`
}
