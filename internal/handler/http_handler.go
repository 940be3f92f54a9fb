package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/procuro-ai/be-po-orders/internal/apperrors"
	"github.com/procuro-ai/be-po-orders/internal/client"
	"github.com/procuro-ai/be-po-orders/internal/logger"
	"github.com/procuro-ai/be-po-orders/internal/repository"
	"github.com/procuro-ai/be-po-orders/internal/service"
)

// HTTPHandler translates JSON requests into service calls.
type HTTPHandler struct {
	orders       *service.OrderService
	approvals    *service.ApprovalService
	stock        *service.StockService
	installments *service.InstallmentService
	workflows    *service.WorkflowService
	cache        *client.CacheInvalidator
	log          *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	orders *service.OrderService,
	approvals *service.ApprovalService,
	stock *service.StockService,
	installments *service.InstallmentService,
	workflows *service.WorkflowService,
	cache *client.CacheInvalidator,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		orders:       orders,
		approvals:    approvals,
		stock:        stock,
		installments: installments,
		workflows:    workflows,
		cache:        cache,
		log:          log,
	}
}

// ── Orders ───────────────────────────────────────────────────────────────────

type createOrderRequest struct {
	EmployeeID        string            `json:"employee_id"`
	EmployeeName      string            `json:"employee_name"`
	PaymentType       string            `json:"payment_type"`
	Discount          decimal.Decimal   `json:"discount"`
	Tax               decimal.Decimal   `json:"tax"`
	InstallmentMonths *int              `json:"installment_months,omitempty"`
	OrderDate         *time.Time        `json:"order_date,omitempty"`
	Notes             *string           `json:"notes,omitempty"`
	Items             []createOrderItem `json:"items"`
}

type createOrderItem struct {
	ItemID    string          `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateOrder handles POST /api/v1/orders.
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	items := make([]*service.OrderItemRequest, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, &service.OrderItemRequest{
			ItemID:    line.ItemID,
			ItemName:  line.ItemName,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	result, err := h.orders.CreateOrder(r.Context(), &service.CreateOrderRequest{
		EmployeeID:        req.EmployeeID,
		EmployeeName:      req.EmployeeName,
		PaymentType:       repository.PaymentType(req.PaymentType),
		Discount:          req.Discount,
		Tax:               req.Tax,
		InstallmentMonths: req.InstallmentMonths,
		OrderDate:         req.OrderDate,
		Notes:             req.Notes,
		Items:             items,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.cache.InvalidatePattern(r.Context(), "orders:*")
	h.writeJSON(w, http.StatusCreated, result)
}

// GetOrder handles GET /api/v1/orders/get?id=.
func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

// ── Approvals ────────────────────────────────────────────────────────────────

type processApprovalRequest struct {
	ApprovalID string  `json:"approval_id"`
	Decision   string  `json:"decision"` // approved | rejected
	Comments   *string `json:"comments,omitempty"`
}

// ProcessApproval handles POST /api/v1/approvals/process.
func (h *HTTPHandler) ProcessApproval(w http.ResponseWriter, r *http.Request) {
	var req processApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ApprovalID == "" {
		http.Error(w, "Approval ID is required", http.StatusBadRequest)
		return
	}

	result, err := h.approvals.ProcessApproval(
		r.Context(),
		req.ApprovalID,
		repository.ApprovalStatus(req.Decision),
		req.Comments,
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.cache.InvalidatePattern(r.Context(), "orders:*")
	h.writeJSON(w, http.StatusOK, result)
}

// ListChain handles GET /api/v1/approvals?order_id=.
func (h *HTTPHandler) ListChain(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	chain, err := h.approvals.ListChain(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, chain)
}

// PendingApprovals handles GET /api/v1/approvals/pending?approver_id=.
func (h *HTTPHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	approverID := r.URL.Query().Get("approver_id")
	if approverID == "" {
		http.Error(w, "Approver ID is required", http.StatusBadRequest)
		return
	}

	pending, err := h.approvals.PendingForApprover(r.Context(), approverID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pending)
}

// ── Stock ────────────────────────────────────────────────────────────────────

// ValidateStock handles GET /api/v1/orders/stock/validate?order_id=.
func (h *HTTPHandler) ValidateStock(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	shortages, err := h.stock.ValidateStockForOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"sufficient": len(shortages) == 0,
		"shortages":  shortages,
	})
}

// ── Installments ─────────────────────────────────────────────────────────────

// ListInstallments handles GET /api/v1/installments?order_id=.
func (h *HTTPHandler) ListInstallments(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	installments, err := h.installments.ListByOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, installments)
}

type recordPaymentRequest struct {
	InstallmentID string `json:"installment_id"`
}

// RecordInstallmentPayment handles POST /api/v1/installments/payment.
func (h *HTTPHandler) RecordInstallmentPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.InstallmentID == "" {
		http.Error(w, "Installment ID is required", http.StatusBadRequest)
		return
	}

	inst, err := h.installments.RecordPayment(r.Context(), req.InstallmentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.cache.InvalidatePattern(r.Context(), "orders:*")
	h.writeJSON(w, http.StatusOK, inst)
}

// ── Workflows ────────────────────────────────────────────────────────────────

type createWorkflowRequest struct {
	Name                string                `json:"name"`
	IsActive            bool                  `json:"is_active"`
	MinOrderAmount      *decimal.Decimal      `json:"min_order_amount,omitempty"`
	MaxOrderAmount      *decimal.Decimal      `json:"max_order_amount,omitempty"`
	RequiresInstallment bool                  `json:"requires_installment"`
	Priority            int                   `json:"priority"`
	Levels              []createWorkflowLevel `json:"levels"`
}

type createWorkflowLevel struct {
	Level         int     `json:"level"`
	Role          string  `json:"role"`
	ApproverID    *string `json:"approver_id,omitempty"`
	ApproverName  *string `json:"approver_name,omitempty"`
	ApproverEmail *string `json:"approver_email,omitempty"`
}

// CreateWorkflow handles POST /api/v1/workflows.
func (h *HTTPHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	levels := make([]*repository.WorkflowApprovalLevel, 0, len(req.Levels))
	for _, l := range req.Levels {
		levels = append(levels, &repository.WorkflowApprovalLevel{
			Level:         l.Level,
			Role:          l.Role,
			ApproverID:    l.ApproverID,
			ApproverName:  l.ApproverName,
			ApproverEmail: l.ApproverEmail,
		})
	}

	wf := &repository.ApprovalWorkflow{
		Name:                req.Name,
		IsActive:            req.IsActive,
		MinOrderAmount:      req.MinOrderAmount,
		MaxOrderAmount:      req.MaxOrderAmount,
		RequiresInstallment: req.RequiresInstallment,
		Priority:            req.Priority,
		Levels:              levels,
	}

	if err := h.workflows.CreateWorkflow(r.Context(), wf); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.cache.InvalidatePattern(r.Context(), "workflows:*")
	h.writeJSON(w, http.StatusCreated, wf)
}

// ListWorkflows handles GET /api/v1/workflows.
func (h *HTTPHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.workflows.ListActive(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, workflows)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	body := map[string]any{
		"error": err.Error(),
		"code":  apperrors.CodeOf(err),
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Details != nil {
		body["details"] = appErr.Details
	}
	h.writeJSON(w, status, body)
}
