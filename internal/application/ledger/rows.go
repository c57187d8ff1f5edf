package ledger

import (
	"strconv"
	"strings"
)

// Row is one flattened, denormalized payment row fed to the console table
// and to read-only exporters. Contract-level figures are repeated on every
// row of the contract and always agree, because they are copied from the
// single contract aggregate at projection time.
type Row struct {
	ClientKey      string        `json:"client_key"`
	ClientName     string        `json:"client_name"`
	DocumentNumber string        `json:"document_number"`
	ContractNumber string        `json:"contract_number"`
	ProjectID      string        `json:"project_id"`
	PaymentID      string        `json:"payment_id,omitempty"`
	Date           string        `json:"date"`
	Concept        string        `json:"concept"`
	Amount         float64       `json:"amount"`
	Method         string        `json:"method,omitempty"`
	Status         PaymentStatus `json:"status"`
	CancelReason   string        `json:"cancel_reason,omitempty"`
	Placeholder    bool          `json:"placeholder,omitempty"`
	TotalCost      float64       `json:"total_cost"`
	TotalPaid      float64       `json:"total_paid"`
	Outstanding    float64       `json:"outstanding"`
}

// Pagination is the paging metadata returned alongside a page of rows.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalRows  int `json:"total_rows"`
	TotalPages int `json:"total_pages"`
}

// DefaultPageSize matches the console table.
const DefaultPageSize = 5

// Flatten projects a ledger snapshot into rows: contract discovery order,
// then event insertion order. Pure; never touches the snapshot.
func Flatten(l *Ledger) []Row {
	if l == nil {
		return nil
	}
	var rows []Row
	for _, client := range l.Clients {
		for _, contract := range client.Contracts {
			for _, e := range contract.Events {
				rows = append(rows, Row{
					ClientKey:      client.Key,
					ClientName:     client.Name,
					DocumentNumber: client.DocumentNumber,
					ContractNumber: contract.Number,
					ProjectID:      contract.ProjectID,
					PaymentID:      e.ID,
					Date:           e.Date,
					Concept:        concept(contract, e),
					Amount:         e.Amount,
					Method:         e.Method,
					Status:         e.Status,
					CancelReason:   e.CancelReason,
					Placeholder:    e.Placeholder,
					TotalCost:      contract.TotalCost,
					TotalPaid:      contract.TotalPaid,
					Outstanding:    contract.Outstanding,
				})
			}
		}
	}
	return rows
}

func concept(c *Contract, e PaymentEvent) string {
	if e.Placeholder {
		return "No payments recorded"
	}
	return "Payment on contract " + c.Number
}

// FilterRows keeps rows whose searchable fields contain the query,
// case-insensitively. Empty query returns the input unchanged.
func FilterRows(rows []Row, query string) []Row {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return rows
	}
	var out []Row
	for _, r := range rows {
		if rowMatches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func rowMatches(r Row, q string) bool {
	for _, field := range []string{
		r.ClientName,
		r.ContractNumber,
		r.Date,
		r.Method,
		string(r.Status),
		r.Concept,
	} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Page slices one page out of the filtered rows. Page numbers are 1-based;
// out-of-range pages return an empty slice with correct metadata.
func Page(rows []Row, page, pageSize int) ([]Row, Pagination) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	total := len(rows)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start >= total {
		return []Row{}, Pagination{Page: page, PageSize: pageSize, TotalRows: total, TotalPages: totalPages}
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return rows[start:end], Pagination{Page: page, PageSize: pageSize, TotalRows: total, TotalPages: totalPages}
}

// ParsePage parses 1-based page params from query strings, tolerant of junk.
func ParsePage(pageStr, sizeStr string) (int, int) {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page <= 0 {
		page = 1
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size <= 0 {
		size = DefaultPageSize
	}
	return page, size
}
