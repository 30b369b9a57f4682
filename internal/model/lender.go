package model

import (
	"fmt"
	"strings"
	"time"
)

// Tier classifies a lender.
type Tier string

const (
	// Tier1 lenders are prime institutions.
	Tier1 Tier = "Tier 1"
	// Tier2 lenders are near-prime institutions.
	Tier2 Tier = "Tier 2"
	// Tier3 lenders accept thinner files.
	Tier3 Tier = "Tier 3"
	// TierSubprime lenders accept subprime borrowers.
	TierSubprime Tier = "Subprime"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case Tier1, Tier2, Tier3, TierSubprime:
		return true
	}
	return false
}

// BureauPulls records which bureaus a lender pulls.
type BureauPulls struct {
	Experian   bool `json:"experian"`
	Equifax    bool `json:"equifax"`
	TransUnion bool `json:"transUnion"`
}

// LenderRelationship is a client's relationship with one funding institution.
// The same record exists as a master copy and an operational mirror.
type LenderRelationship struct {
	UpdatedAt       *time.Time  `json:"updatedAt,omitempty"`
	LastSession     *time.Time  `json:"lastSession,omitempty"`
	ID              string      `json:"-"`
	Institution     string      `json:"institution"`
	Tier            Tier        `json:"tier"`
	Status          string      `json:"status,omitempty"`
	Strategy        string      `json:"strategy,omitempty"`
	MembershipNotes string      `json:"membershipNotes,omitempty"`
	Pulls           BureauPulls `json:"pulls"`
	MinScore        int         `json:"minScore"`
	SoftPull        bool        `json:"softPull"`
	IsWinner        bool        `json:"isWinner"`
}

// Validate checks the fields a relationship must carry before it is written.
func (l LenderRelationship) Validate() error {
	if strings.TrimSpace(l.Institution) == "" {
		return fmt.Errorf("institution is required")
	}
	if l.Tier != "" && !l.Tier.Valid() {
		return fmt.Errorf("unknown tier %q", l.Tier)
	}
	if l.MinScore < 0 || l.MinScore > 850 {
		return fmt.Errorf("minimum score must be between 0 and 850, got %d", l.MinScore)
	}
	return nil
}

// FundingSession is one application attempt with a lender.
type FundingSession struct {
	Date            *time.Time `json:"date,omitempty"`
	ID              string     `json:"-"`
	Outcome         string     `json:"outcome"`
	Notes           string     `json:"notes,omitempty"`
	AmountRequested float64    `json:"amountRequested"`
	AmountApproved  float64    `json:"amountApproved"`
}

// FundingSource is an entry in the shared lender catalog.
type FundingSource struct {
	ID          string      `json:"-"`
	Institution string      `json:"institution"`
	Tier        Tier        `json:"tier"`
	Notes       string      `json:"notes,omitempty"`
	Pulls       BureauPulls `json:"pulls"`
	MinScore    int         `json:"minScore"`
	SoftPull    bool        `json:"softPull"`
}

// FundingProfile is the latest funding snapshot for a client.
type FundingProfile struct {
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
	Utilization       float64    `json:"utilization"`
	TotalLimits       float64    `json:"totalLimits"`
	InquiriesLast6Mo  int        `json:"inquiriesLast6Mo"`
	OldestAccountAge  int        `json:"oldestAccountAgeMonths"`
	TargetFunding     float64    `json:"targetFunding"`
	BusinessEntity    string     `json:"businessEntity,omitempty"`
	PersonalGuarantee bool       `json:"personalGuarantee"`
}

// Readiness holds the funding-readiness checklist for a client.
type Readiness struct {
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
	Checklist map[string]bool `json:"checklist"`
	Notes     string          `json:"notes,omitempty"`
}

// Complete reports whether every checklist item is done.
func (r Readiness) Complete() bool {
	if len(r.Checklist) == 0 {
		return false
	}
	for _, done := range r.Checklist {
		if !done {
			return false
		}
	}
	return true
}
