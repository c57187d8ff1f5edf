package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"obraflow-backend/internal/application/costing"
	"obraflow-backend/internal/infrastructure/coreapi"

	"github.com/rs/zerolog/log"
)

// Source is what the aggregator needs from the core API (read side only).
type Source interface {
	ListClients(ctx context.Context) ([]coreapi.ClientRecord, error)
	ListProjects(ctx context.Context) ([]coreapi.ProjectRecord, error)
	ListProjectPayments(ctx context.Context, projectID string) ([]coreapi.PaymentRecord, error)
}

const defaultConcurrency = 8

// Aggregator rebuilds the full ledger snapshot from the upstream core API.
// Per-project payment fetches run through a bounded worker pool; one
// unreachable project yields an empty event list, never a failed pass.
type Aggregator struct {
	Source      Source
	Concurrency int
}

// Build fetches everything and assembles a fresh snapshot. Only a total
// failure of one of the two directory fetches is fatal; repeating the call
// against the same remote state reproduces the same ledger.
func (a *Aggregator) Build(ctx context.Context) (*Ledger, error) {
	clients, projects, err := a.fetchDirectories(ctx)
	if err != nil {
		return nil, err
	}

	payments := a.fetchPayments(ctx, projects)

	dir := newDirectory(clients)
	l := &Ledger{BuiltAt: time.Now()}
	groups := make(map[string]*ClientGroup)

	for i, p := range projects {
		projectID := string(p.ID)
		if projectID == "" {
			log.Warn().Int("index", i).Msg("Skipping project without id")
			continue
		}

		identity := resolveClient(p, dir)
		group, ok := groups[identity.Key]
		if !ok {
			group = &ClientGroup{
				Key:            identity.Key,
				Name:           identity.Name,
				DocumentType:   identity.DocumentType,
				DocumentNumber: identity.DocumentNumber,
				Phone:          identity.Phone,
				Email:          identity.Email,
				Synthetic:      identity.Synthetic,
			}
			groups[identity.Key] = group
			l.Clients = append(l.Clients, group)
		}

		contract := &Contract{
			Number:    p.ContractNumber,
			ProjectID: projectID,
			StartDate: p.StartDate,
			EndDate:   p.EndDate,
			TotalCost: costing.TotalCost(p),
		}
		for _, raw := range payments[i] {
			contract.Events = append(contract.Events, toEvent(raw))
		}
		if len(contract.Events) == 0 {
			contract.Events = append(contract.Events, placeholderEvent())
		}
		contract.Recompute()
		group.Contracts = append(group.Contracts, contract)
	}

	l.index()
	return l, nil
}

// fetchDirectories loads the client and project directories concurrently.
func (a *Aggregator) fetchDirectories(ctx context.Context) ([]coreapi.ClientRecord, []coreapi.ProjectRecord, error) {
	var (
		wg          sync.WaitGroup
		clients     []coreapi.ClientRecord
		projects    []coreapi.ProjectRecord
		clientsErr  error
		projectsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		clients, clientsErr = a.Source.ListClients(ctx)
	}()
	go func() {
		defer wg.Done()
		projects, projectsErr = a.Source.ListProjects(ctx)
	}()
	wg.Wait()

	if clientsErr != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrClientDirectory, clientsErr)
	}
	if projectsErr != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrProjectDirectory, projectsErr)
	}
	return clients, projects, nil
}

// fetchPayments fans out one fetch per project through a semaphore and
// reduces results back into project order, so row order never depends on
// network timing. A failed fetch degrades to an empty list and a warn log.
func (a *Aggregator) fetchPayments(ctx context.Context, projects []coreapi.ProjectRecord) [][]coreapi.PaymentRecord {
	concurrency := a.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make([][]coreapi.PaymentRecord, len(projects))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, p := range projects {
		projectID := string(p.ID)
		if projectID == "" {
			continue
		}
		// Acquire before spawning so the goroutine count is bounded too, not
		// just the in-flight requests.
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, projectID string) {
			defer wg.Done()
			defer func() { <-sem }()

			events, err := a.Source.ListProjectPayments(ctx, projectID)
			if err != nil {
				log.Warn().Err(err).Str("project_id", projectID).Msg("Payment history fetch failed, continuing with empty list")
				return
			}
			results[i] = events
		}(i, projectID)
	}
	wg.Wait()
	return results
}

func toEvent(raw coreapi.PaymentRecord) PaymentEvent {
	status := StatusActive
	if !raw.Active {
		status = StatusCancelled
	}
	return PaymentEvent{
		ID:           raw.EffectiveID(),
		Date:         raw.Date,
		Amount:       raw.Amount,
		Method:       raw.Method,
		Status:       status,
		CancelReason: raw.CancelReason,
	}
}

// placeholderEvent is the synthetic row of a contract with no payments. It
// is never persisted and the reconciliation service refuses to cancel it.
func placeholderEvent() PaymentEvent {
	return PaymentEvent{
		Amount:      0,
		Status:      StatusNoPayments,
		Placeholder: true,
	}
}
