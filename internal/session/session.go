// Package session holds one uploaded document set per session. Sessions are
// fully independent: engines receive a session's records from the caller and
// never read process-wide state, so concurrent sessions cannot leak into
// each other.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/iva-margem/iva-margem/internal/margin"
)

// Metadata records where a session's documents came from.
type Metadata struct {
	Source      string   `json:"source"`
	CompanyName string   `json:"company_name,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

// Session is one uploaded document set. Sales and Costs are immutable after
// ingestion except for their link sets, which only the margin.Index mutates.
type Session struct {
	ID        string        `json:"id"`
	Sales     []margin.Sale `json:"sales"`
	Costs     []margin.Cost `json:"costs"`
	Metadata  Metadata      `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// New builds an empty session with a fresh id.
func New(meta Metadata) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SalePtrs returns addressable references into the session's sales for the
// association index and calculators.
func (s *Session) SalePtrs() []*margin.Sale {
	out := make([]*margin.Sale, len(s.Sales))
	for i := range s.Sales {
		out[i] = &s.Sales[i]
	}
	return out
}

// CostPtrs returns addressable references into the session's costs.
func (s *Session) CostPtrs() []*margin.Cost {
	out := make([]*margin.Cost, len(s.Costs))
	for i := range s.Costs {
		out[i] = &s.Costs[i]
	}
	return out
}

// Index builds the association index over this session's records.
func (s *Session) Index() *margin.Index {
	return margin.NewIndex(s.SalePtrs(), s.CostPtrs())
}
