package model

import (
	"strings"
	"time"
)

// ClientStatus is the account status of a client.
type ClientStatus string

const (
	// StatusActive is a client with an active engagement.
	StatusActive ClientStatus = "Active"
	// StatusLead is a prospect that has not signed up.
	StatusLead ClientStatus = "Lead"
	// StatusOnboarding is a newly created client still being set up.
	StatusOnboarding ClientStatus = "Onboarding"
	// StatusDispute is a client with open bureau disputes.
	StatusDispute ClientStatus = "Dispute"
	// StatusArchived is a closed-out client.
	StatusArchived ClientStatus = "Archived"
)

// ClientStatuses lists every valid client status.
var ClientStatuses = []ClientStatus{
	StatusActive,
	StatusLead,
	StatusOnboarding,
	StatusDispute,
	StatusArchived,
}

// ParseClientStatus matches s case-insensitively against the known statuses.
func ParseClientStatus(s string) (ClientStatus, bool) {
	s = strings.TrimSpace(s)
	for _, status := range ClientStatuses {
		if strings.EqualFold(s, string(status)) {
			return status, true
		}
	}
	return "", false
}

// Scores holds the three-bureau credit scores. A nil score is absent; zero is a valid score.
type Scores struct {
	Experian   *int `json:"experian"`
	Equifax    *int `json:"equifax"`
	TransUnion *int `json:"transUnion"`
}

// Client is the normalized view of a client record.
type Client struct {
	CreatedAt   *time.Time   `json:"createdAt,omitempty"`
	ID          string       `json:"-"`
	FirstName   string       `json:"firstName"`
	LastName    string       `json:"lastName"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone"`
	Status      ClientStatus `json:"status"`
	LastMessage string       `json:"lastMessage"`
	Scores      Scores       `json:"scores"`
	IsPinned    bool         `json:"isPinned"`
}

// DisplayName returns the client's full name for listings.
func (c Client) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Message is one entry in a client's message thread.
type Message struct {
	SentAt *time.Time `json:"sentAt,omitempty"`
	ID     string     `json:"-"`
	Text   string     `json:"text"`
	Sender string     `json:"sender"`
}

// Task is a to-do item attached to a client.
type Task struct {
	DueAt       *time.Time `json:"dueAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ID          string     `json:"-"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	Done        bool       `json:"done"`
}
