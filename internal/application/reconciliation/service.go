package reconciliation

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"obraflow-backend/internal/application/ledger"
	"obraflow-backend/internal/infrastructure/coreapi"
	"obraflow-backend/internal/models"
	"obraflow-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventStore is the write side of the upstream payment event store.
type EventStore interface {
	CreatePayment(ctx context.Context, projectID string, in coreapi.CreatePaymentInput) error
	CancelPayment(ctx context.Context, projectID, paymentID, reason string) error
}

// Service orchestrates payment mutations against the upstream store and
// keeps the in-memory ledger snapshot they operate on. The merge strategy is
// deliberately asymmetric: creation triggers a full rebuild (the backend is
// authoritative for anything it may recompute), cancellation is mirrored
// locally because its effect is pure local arithmetic.
type Service struct {
	Aggregator *ledger.Aggregator
	Store      EventStore
	DB         *gorm.DB // optional audit trail; nil disables it

	mu       sync.RWMutex
	snapshot *ledger.Ledger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// contractLock serializes mutations per contract (keyed by project id) so a
// second mutation cannot start against a stale outstanding balance.
func (s *Service) contractLock(projectID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	return l
}

// Reload rebuilds the snapshot from the upstream state and swaps it in. On
// failure the previous snapshot stays usable.
func (s *Service) Reload(ctx context.Context) (*ledger.Ledger, error) {
	l, err := s.Aggregator.Build(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.snapshot = l
	s.mu.Unlock()
	return l, nil
}

// ensureLoaded returns the current snapshot, building one on first use.
func (s *Service) ensureLoaded(ctx context.Context) (*ledger.Ledger, error) {
	s.mu.RLock()
	l := s.snapshot
	s.mu.RUnlock()
	if l != nil {
		return l, nil
	}
	return s.Reload(ctx)
}

// Rows returns one filtered page of flattened rows plus paging metadata.
func (s *Service) Rows(ctx context.Context, search string, page, pageSize int) ([]ledger.Row, ledger.Pagination, error) {
	if _, err := s.ensureLoaded(ctx); err != nil {
		return nil, ledger.Pagination{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := ledger.FilterRows(ledger.Flatten(s.snapshot), search)
	pageRows, meta := ledger.Page(rows, page, pageSize)
	return pageRows, meta, nil
}

// Ledger returns the nested clients -> contracts view as a copy taken under
// the read lock, so callers can serialize it while cancellations keep
// patching the live snapshot.
func (s *Service) Ledger(ctx context.Context) (*ledger.Ledger, error) {
	if _, err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone(), nil
}

// CreatePaymentInput for a new payment (abono) against a contract's project.
type CreatePaymentInput struct {
	ProjectID string  `json:"project_id"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"`
	Method    string  `json:"method"`
}

// CreatePayment validates against the current outstanding balance, persists
// the event upstream, then fully reloads the ledger. A store failure leaves
// local state untouched and surfaces the backend's message verbatim.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) error {
	if in.Amount <= 0 {
		return ErrAmountNotPositive
	}
	if !validation.IsValidPaymentMethod(in.Method) {
		return ErrInvalidMethod
	}

	lock := s.contractLock(in.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	l, err := s.ensureLoaded(ctx)
	if err != nil {
		return err
	}

	s.mu.RLock()
	contract := l.ContractByProject(in.ProjectID)
	var outstanding float64
	if contract != nil {
		outstanding = contract.Outstanding
	}
	s.mu.RUnlock()
	if contract == nil {
		return ErrContractNotFound
	}
	if in.Amount > outstanding {
		return ErrAmountExceedsOutstanding
	}

	if err := s.Store.CreatePayment(ctx, in.ProjectID, coreapi.CreatePaymentInput{
		Date:   in.Date,
		Amount: in.Amount,
		Method: in.Method,
	}); err != nil {
		return err
	}

	s.audit(ctx, "create_payment", in.ProjectID, "", map[string]interface{}{
		"amount": in.Amount,
		"date":   in.Date,
		"method": in.Method,
	})

	// The backend is the source of truth after a write; re-derive instead of
	// merging speculatively.
	if _, err := s.Reload(ctx); err != nil {
		log.Error().Err(err).Str("project_id", in.ProjectID).Msg("Reload after payment creation failed, snapshot is stale")
		return err
	}
	return nil
}

// CancelPaymentInput identifies the event to cancel and the mandatory reason.
type CancelPaymentInput struct {
	ProjectID string `json:"project_id"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

// CancelPayment marks the event cancelled upstream, then mirrors the effect
// locally: flip the status, set the reason, recompute the contract's
// aggregate from its full local event list. Every row of the contract then
// reports the current outstanding balance. Terminal events are rejected
// before any network call.
func (s *Service) CancelPayment(ctx context.Context, in CancelPaymentInput) error {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return ErrReasonRequired
	}

	lock := s.contractLock(in.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	l, err := s.ensureLoaded(ctx)
	if err != nil {
		return err
	}

	s.mu.RLock()
	contract := l.ContractByProject(in.ProjectID)
	var event *ledger.PaymentEvent
	if contract != nil {
		event = contract.EventByID(in.PaymentID)
	}
	s.mu.RUnlock()

	if contract == nil {
		return ErrContractNotFound
	}
	if event == nil {
		return ErrPaymentNotFound
	}
	if event.Placeholder {
		return ErrPlaceholderRow
	}
	if event.Status == ledger.StatusCancelled {
		return ErrAlreadyCancelled
	}

	if err := s.Store.CancelPayment(ctx, in.ProjectID, in.PaymentID, reason); err != nil {
		return err
	}

	s.mu.Lock()
	event.Status = ledger.StatusCancelled
	event.CancelReason = reason
	contract.Recompute()
	s.mu.Unlock()

	s.audit(ctx, "cancel_payment", in.ProjectID, in.PaymentID, map[string]interface{}{
		"reason": reason,
		"amount": event.Amount,
	})
	return nil
}

// audit records a successful mutation; failures are logged, never surfaced.
func (s *Service) audit(ctx context.Context, action, projectID, paymentID string, details map[string]interface{}) {
	if s.DB == nil {
		return
	}
	b, err := json.Marshal(details)
	if err != nil {
		b = []byte("{}")
	}
	entry := &models.ReconciliationAudit{
		Action:    action,
		ProjectID: projectID,
		PaymentID: paymentID,
		Details:   datatypes.JSON(b),
	}
	if err := s.DB.WithContext(ctx).Create(entry).Error; err != nil {
		log.Warn().Err(err).Str("action", action).Str("project_id", projectID).Msg("Audit write failed")
	}
}
