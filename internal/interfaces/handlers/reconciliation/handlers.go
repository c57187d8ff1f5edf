package reconciliation

import (
	"errors"

	"obraflow-backend/internal/application/ledger"
	reconsvc "obraflow-backend/internal/application/reconciliation"
	"obraflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the reconciliation ledger over HTTP.
type Handlers struct {
	Service *reconsvc.Service
	// PageSize overrides the default rows page size when the request
	// doesn't ask for one. Zero keeps the package default.
	PageSize int
}

// GetRows GET /api/v1/reconciliation/rows?search=&page=&page_size=
func (h *Handlers) GetRows(c *fiber.Ctx) error {
	page, size := ledger.ParsePage(c.Query("page"), c.Query("page_size"))
	if c.Query("page_size") == "" && h.PageSize > 0 {
		size = h.PageSize
	}
	rows, meta, err := h.Service.Rows(c.Context(), c.Query("search"), page, size)
	if err != nil {
		return directoryError(c, err)
	}
	return response.Success(c, "Ledger rows fetched successfully", rows, fiber.Map{"pagination": meta})
}

// GetLedger GET /api/v1/reconciliation/ledger — nested clients -> contracts view.
func (h *Handlers) GetLedger(c *fiber.Ctx) error {
	l, err := h.Service.Ledger(c.Context())
	if err != nil {
		return directoryError(c, err)
	}
	return response.Success(c, "Ledger fetched successfully", l.Clients, fiber.Map{"built_at": l.BuiltAt})
}

// Reload POST /api/v1/reconciliation/reload — rebuild from upstream state.
func (h *Handlers) Reload(c *fiber.Ctx) error {
	l, err := h.Service.Reload(c.Context())
	if err != nil {
		return directoryError(c, err)
	}
	return response.Success(c, "Ledger reloaded successfully", fiber.Map{
		"clients":  len(l.Clients),
		"built_at": l.BuiltAt,
	}, nil)
}

// CreatePayment POST /api/v1/reconciliation/payments
func (h *Handlers) CreatePayment(c *fiber.Ctx) error {
	var req reconsvc.CreatePaymentInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if req.ProjectID == "" {
		return response.Error(c, "project_id is required", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.CreatePayment(c.Context(), req); err != nil {
		return mutationError(c, err)
	}
	return response.SuccessCreated(c, "Payment registered successfully", nil, nil)
}

// CancelPayment POST /api/v1/reconciliation/payments/:payment_id/cancel
func (h *Handlers) CancelPayment(c *fiber.Ctx) error {
	var req reconsvc.CancelPaymentInput
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	req.PaymentID = c.Params("payment_id")
	if req.ProjectID == "" {
		return response.Error(c, "project_id is required", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.CancelPayment(c.Context(), req); err != nil {
		return mutationError(c, err)
	}
	return response.Success(c, "Payment cancelled successfully", nil, nil)
}

// directoryError maps a failed aggregation pass to a retryable error state.
func directoryError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ledger.ErrClientDirectory) || errors.Is(err, ledger.ErrProjectDirectory) {
		return response.Error(c, err.Error(), fiber.StatusBadGateway, fiber.Map{"retryable": true})
	}
	return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
}

// mutationError maps service errors to status codes. Anything that is not a
// local validation/state error is a remote write failure whose message is
// surfaced verbatim.
func mutationError(c *fiber.Ctx, err error) error {
	switch {
	case reconsvc.IsValidation(err):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case reconsvc.IsInvalidState(err):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	case reconsvc.IsNotFound(err):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, ledger.ErrClientDirectory), errors.Is(err, ledger.ErrProjectDirectory):
		return response.Error(c, err.Error(), fiber.StatusBadGateway, fiber.Map{"retryable": true})
	default:
		return response.Error(c, err.Error(), fiber.StatusBadGateway, nil)
	}
}
