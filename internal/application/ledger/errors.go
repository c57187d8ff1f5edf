package ledger

import "errors"

var (
	// ErrClientDirectory means GET /clients failed entirely; the pass is
	// fatal and the previous snapshot (if any) stays in place.
	ErrClientDirectory = errors.New("Failed to fetch client directory")
	// ErrProjectDirectory means GET /projects failed entirely.
	ErrProjectDirectory = errors.New("Failed to fetch project directory")
)
