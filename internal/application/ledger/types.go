package ledger

import (
	"time"
)

// PaymentStatus is the lifecycle state of a payment event. The only real
// transition is Active -> Cancelled; NoPayments marks the synthetic
// placeholder of an empty contract and never reaches a write path.
type PaymentStatus string

const (
	StatusActive     PaymentStatus = "Active"
	StatusCancelled  PaymentStatus = "Cancelled"
	StatusNoPayments PaymentStatus = "NoPayments"
)

// PaymentEvent is one recorded payment (abono) against a contract, or the
// synthetic placeholder when the contract has none. Events are never
// deleted; cancellation flips Status and records the reason.
type PaymentEvent struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Amount       float64       `json:"amount"`
	Method       string        `json:"method"`
	Status       PaymentStatus `json:"status"`
	CancelReason string        `json:"cancel_reason,omitempty"`
	Placeholder  bool          `json:"placeholder,omitempty"`
}

// Contract is the payment-bearing view of one project. TotalCost is computed
// once at build time; TotalPaid and Outstanding are derived from Events and
// live here (not on each event) so every row of the contract structurally
// reports the same figures.
type Contract struct {
	Number      string         `json:"contract_number"`
	ProjectID   string         `json:"project_id"`
	StartDate   string         `json:"start_date"`
	EndDate     string         `json:"end_date"`
	TotalCost   float64        `json:"total_cost"`
	TotalPaid   float64        `json:"total_paid"`
	Outstanding float64        `json:"outstanding"`
	Events      []PaymentEvent `json:"events"`
}

// Recompute recalculates TotalPaid and Outstanding from the full local event
// list. Flat recompute on purpose: the aggregate is always a pure function
// of the current events, never an incrementally drifting counter.
func (c *Contract) Recompute() {
	var paid float64
	for _, e := range c.Events {
		if e.Status == StatusActive {
			paid += e.Amount
		}
	}
	c.TotalPaid = paid
	c.Outstanding = c.TotalCost - paid
	if c.Outstanding < 0 {
		c.Outstanding = 0
	}
}

// EventByID returns the event with the given id, nil if absent.
func (c *Contract) EventByID(id string) *PaymentEvent {
	for i := range c.Events {
		if c.Events[i].ID == id {
			return &c.Events[i]
		}
	}
	return nil
}

// ClientGroup is one resolved client and its contracts, in discovery order.
type ClientGroup struct {
	Key            string      `json:"key"`
	Name           string      `json:"name"`
	DocumentType   string      `json:"document_type,omitempty"`
	DocumentNumber string      `json:"document_number"`
	Phone          string      `json:"phone,omitempty"`
	Email          string      `json:"email,omitempty"`
	Synthetic      bool        `json:"synthetic,omitempty"`
	Contracts      []*Contract `json:"contracts"`
}

// Ledger is one immutable-by-convention snapshot of the reconciliation
// state: clients -> contracts -> events, rebuilt from scratch on every full
// load. Mutations go through the reconciliation service, which either swaps
// in a fresh snapshot (create) or patches one contract in place (cancel).
type Ledger struct {
	Clients []*ClientGroup `json:"clients"`
	BuiltAt time.Time      `json:"built_at"`

	byProject map[string]*Contract
	byKey     map[string]*ClientGroup
}

// ClientByKey returns the client group for a resolution key, nil if absent.
func (l *Ledger) ClientByKey(key string) *ClientGroup {
	if l == nil {
		return nil
	}
	return l.byKey[key]
}

// ContractByProject returns the contract built from the given project id.
// Contract numbers are only unique per client, so the project id is the
// stable handle mutations use.
func (l *Ledger) ContractByProject(projectID string) *Contract {
	if l == nil {
		return nil
	}
	return l.byProject[projectID]
}

// Clone returns a deep copy. Handed out in place of the live snapshot, which
// keeps receiving in-place cancellation patches under the service's write
// lock.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	out := &Ledger{
		Clients: make([]*ClientGroup, len(l.Clients)),
		BuiltAt: l.BuiltAt,
	}
	for i, cl := range l.Clients {
		group := *cl
		group.Contracts = make([]*Contract, len(cl.Contracts))
		for j, ct := range cl.Contracts {
			contract := *ct
			contract.Events = append([]PaymentEvent(nil), ct.Events...)
			group.Contracts[j] = &contract
		}
		out.Clients[i] = &group
	}
	out.index()
	return out
}

// index rebuilds the lookup maps after the groups are assembled.
func (l *Ledger) index() {
	l.byKey = make(map[string]*ClientGroup, len(l.Clients))
	l.byProject = make(map[string]*Contract)
	for _, cl := range l.Clients {
		l.byKey[cl.Key] = cl
		for _, ct := range cl.Contracts {
			l.byProject[ct.ProjectID] = ct
		}
	}
}
