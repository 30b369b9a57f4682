package model

import "time"

// LawDoc is a legal reference held in the shared library.
type LawDoc struct {
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	ID        string     `json:"-"`
	Title     string     `json:"title"`
	Category  string     `json:"category"`
	Citation  string     `json:"citation,omitempty"`
	Content   string     `json:"content"`
	Tags      []string   `json:"tags,omitempty"`
}

// VaultDocument is the metadata for a file stored in a client's vault.
type VaultDocument struct {
	UploadedAt  *time.Time `json:"uploadedAt,omitempty"`
	ID          string     `json:"-"`
	Name        string     `json:"name"`
	ContentType string     `json:"contentType"`
	ObjectKey   string     `json:"objectKey"`
	Category    string     `json:"category,omitempty"`
	Size        int64      `json:"size"`
}

// Letter is a drafted dispute letter.
type Letter struct {
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	ID            string     `json:"-"`
	Bureau        Bureau     `json:"bureau"`
	ReportDate    string     `json:"reportDate,omitempty"`
	EvidenceGuide string     `json:"evidenceGuide"`
	LetterBody    string     `json:"letterBody"`
	Engine        string     `json:"engine,omitempty"`
	AccountRowIDs []string   `json:"accountRowIds,omitempty"`
	Round         int        `json:"round"`
}
