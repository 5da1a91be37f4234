// Package http exposes the margin engine over JSON endpoints: one session
// per uploaded document set, association management, auto-matching and the
// two calculation modes.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iva-margem/iva-margem/internal/ingest"
	"github.com/iva-margem/iva-margem/internal/margin"
	"github.com/iva-margem/iva-margem/internal/period"
	"github.com/iva-margem/iva-margem/internal/session"
)

// Service wires the engines to the session and period stores. All engine
// state is owned by the session being operated on; the service itself is
// stateless apart from the request-collapsing group.
type Service struct {
	logger   *slog.Logger
	sessions session.Store
	balances period.BalanceStore

	// Collapses concurrent identical calculation requests; results are pure
	// functions of session state, so sharing one computation is safe.
	calcGroup singleflight.Group
}

// NewService constructs the service.
func NewService(logger *slog.Logger, sessions session.Store, balances period.BalanceStore) *Service {
	return &Service{logger: logger, sessions: sessions, balances: balances}
}

// CreateSession persists a freshly ingested document set and returns it.
func (s *Service) CreateSession(ctx context.Context, res *ingest.Result) (*session.Session, error) {
	sess := session.New(session.Metadata{
		Source:      res.Source,
		CompanyName: res.CompanyName,
		Errors:      res.Errors,
	})
	sess.Sales = res.Sales
	sess.Costs = res.Costs
	for i := range sess.Sales {
		if sess.Sales[i].LinkedCosts == nil {
			sess.Sales[i].LinkedCosts = []string{}
		}
	}
	for i := range sess.Costs {
		if sess.Costs[i].LinkedSales == nil {
			sess.Costs[i].LinkedSales = []string{}
		}
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("session created",
		slog.String("session", sess.ID),
		slog.Int("sales", len(sess.Sales)),
		slog.Int("costs", len(sess.Costs)))
	return sess, nil
}

// GetSession loads a session by id.
func (s *Service) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Get(ctx, id)
}

// DeleteSession drops a session and its stored state.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

// AssociateResult reports the outcome of a manual association.
type AssociateResult struct {
	NewLinks     int `json:"associations_made"`
	SalesUpdated int `json:"sales_updated"`
	CostsUpdated int `json:"costs_updated"`
}

// Associate links the cross-product of the given sale and cost ids.
func (s *Service) Associate(ctx context.Context, sessionID string, saleIDs, costIDs []string) (AssociateResult, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return AssociateResult{}, err
	}
	ix := sess.Index()
	created, err := ix.Associate(saleIDs, costIDs)
	if err != nil {
		return AssociateResult{}, err
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return AssociateResult{}, err
	}
	return AssociateResult{
		NewLinks:     created,
		SalesUpdated: len(saleIDs),
		CostsUpdated: len(costIDs),
	}, nil
}

// Unlink removes a single sale/cost link. Unknown pairs are a no-op.
func (s *Service) Unlink(ctx context.Context, sessionID, saleID, costID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	ix := sess.Index()
	ix.Unlink(saleID, costID)
	return s.sessions.Put(ctx, sess)
}

// ClearAssociations removes every link in the session.
func (s *Service) ClearAssociations(ctx context.Context, sessionID string) (int, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	ix := sess.Index()
	removed := ix.ClearAll()
	if err := s.sessions.Put(ctx, sess); err != nil {
		return 0, err
	}
	return removed, nil
}

// AutoMatchResult carries accepted matches plus how many links were new.
type AutoMatchResult struct {
	Matches  []margin.Match `json:"matches"`
	NewLinks int            `json:"associations_made"`
}

// AutoMatch scores all sale/cost pairs, commits those at or above the
// threshold and persists the updated graph. Already-linked pairs may be
// re-proposed; committing them is idempotent.
func (s *Service) AutoMatch(ctx context.Context, sessionID string, threshold int) (AutoMatchResult, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return AutoMatchResult{}, err
	}
	matches, err := margin.MatchAll(sess.SalePtrs(), sess.CostPtrs(), threshold)
	if err != nil {
		return AutoMatchResult{}, err
	}
	ix := sess.Index()
	created, err := margin.CommitMatches(ix, matches)
	if err != nil {
		return AutoMatchResult{}, err
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return AutoMatchResult{}, err
	}
	s.logger.Info("auto-match committed",
		slog.String("session", sessionID),
		slog.Int("matches", len(matches)),
		slog.Int("new_links", created))
	if matches == nil {
		matches = []margin.Match{}
	}
	return AutoMatchResult{Matches: matches, NewLinks: created}, nil
}

// CalculationOutcome is the transaction-mode response payload.
type CalculationOutcome struct {
	SessionID string                     `json:"session_id"`
	Results   []margin.CalculationResult `json:"calculations"`
	Summary   margin.Summary             `json:"summary"`
	Issues    []margin.Issue             `json:"issues,omitempty"`
}

// Calculate runs the transaction-mode computation for the whole session.
func (s *Service) Calculate(ctx context.Context, sessionID string, rate float64) (*CalculationOutcome, error) {
	key := fmt.Sprintf("calc:%s:%v", sessionID, rate)
	v, err, _ := s.calcGroup.Do(key, func() (any, error) {
		return s.calculate(ctx, sessionID, rate)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CalculationOutcome), nil
}

func (s *Service) calculate(ctx context.Context, sessionID string, rate float64) (*CalculationOutcome, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	calc, err := margin.NewCalculator(rate)
	if err != nil {
		return nil, err
	}
	ix := sess.Index()
	results, summary := calc.CalculateAll(sess.SalePtrs(), ix.Costs())
	return &CalculationOutcome{
		SessionID: sess.ID,
		Results:   results,
		Summary:   summary,
		Issues:    margin.ReviewResults(results),
	}, nil
}

// CalculatePeriod runs the period-mode computation for a calendar quarter,
// loading the incoming carry-forward from the balance store and persisting
// the outgoing one for the next period.
func (s *Service) CalculatePeriod(ctx context.Context, sessionID string, year, quarter int, rate float64) (*period.Result, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	fp, err := period.Quarter(year, quarter)
	if err != nil {
		return nil, err
	}
	engine, err := period.NewEngine(rate)
	if err != nil {
		return nil, err
	}
	carryIn, err := s.balances.CarryForwardInto(ctx, sessionID, year, quarter)
	if err != nil {
		return nil, err
	}
	ix := sess.Index()
	result, err := engine.Calculate(fp, sess.SalePtrs(), ix.Costs(), carryIn)
	if err != nil {
		return nil, err
	}
	if err := s.balances.Save(ctx, sessionID, year, quarter, result.CarryForwardOut); err != nil {
		return nil, err
	}
	s.logger.Info("period calculated",
		slog.String("session", sessionID),
		slog.Int("year", year),
		slog.Int("quarter", quarter),
		slog.Float64("carry_forward_out", result.CarryForwardOut))
	return &result, nil
}

// PurgeSessions drops sessions that have been idle longer than maxAge.
func (s *Service) PurgeSessions(ctx context.Context, maxAge time.Duration) (int, error) {
	return s.sessions.PurgeExpired(ctx, maxAge)
}
