package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mhixter/arapointx-sub002/internal/api/dto"
	"github.com/Mhixter/arapointx-sub002/internal/inventory"
)

// RequestCash handles POST /api/v1/cash/requests
// Allocates a receiving number and records a pending order. The number's
// daily capacity stays untouched until the user confirms the transfer.
func (h *OrderHandler) RequestCash(c *gin.Context) {
	var req dto.CashRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Amount must be positive",
		})
		return
	}

	order, number, err := h.inventory.RequestCash(c.Request.Context(), req.RequesterID, req.Network, req.Amount)
	if errors.Is(err, inventory.ErrOutOfStock) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "No receiving number can take this amount right now",
			"code":  "out_of_stock",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to create cash request", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create cash request",
		})
		return
	}

	c.JSON(http.StatusOK, dto.CashRequestResponse{
		OrderID:     order.OrderID,
		Status:      order.Status,
		PhoneNumber: number.PhoneNumber,
		Network:     number.Network,
		Amount:      order.Amount,
	})
}

// ConfirmTransfer handles POST /api/v1/cash/requests/:order_id/confirm
func (h *OrderHandler) ConfirmTransfer(c *gin.Context) {
	orderID := c.Param("order_id")

	var req dto.ConfirmTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	err := h.inventory.ConfirmTransfer(c.Request.Context(), orderID, req.RequesterID)
	switch {
	case errors.Is(err, inventory.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
	case errors.Is(err, inventory.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Order cannot be confirmed in its current state",
		})
	case errors.Is(err, inventory.ErrOutOfStock):
		// The number's capacity was consumed between allocation and
		// confirmation; the operator resolves these manually.
		c.JSON(http.StatusConflict, gin.H{
			"error": "Receiving number can no longer take this amount",
			"code":  "out_of_stock",
		})
	case err != nil:
		h.logger.Error("Failed to confirm transfer", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to confirm transfer",
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"order_id": orderID,
			"status":   inventory.CashOrderAirtimeSent,
		})
	}
}

// GetCashOrder handles GET /api/v1/cash/requests/:order_id
func (h *OrderHandler) GetCashOrder(c *gin.Context) {
	orderID := c.Param("order_id")
	requesterID := c.Query("requester_id")
	if requesterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "requester_id is required",
		})
		return
	}

	order, err := h.inventory.GetCashOrder(c.Request.Context(), orderID, requesterID)
	if errors.Is(err, inventory.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get cash order", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get order",
		})
		return
	}

	view := dto.CashOrderView{
		OrderID:     order.OrderID,
		RequesterID: order.RequesterID,
		Network:     order.Network,
		Amount:      order.Amount,
		Status:      order.Status,
		Refunded:    order.Refunded,
		CreatedAt:   order.CreatedAt.Format(time.RFC3339),
	}
	if order.FailureReason != nil {
		view.FailureReason = *order.FailureReason
	}
	c.JSON(http.StatusOK, view)
}

// CompleteCashOrder handles POST /api/v1/admin/cash/:order_id/complete
func (h *OrderHandler) CompleteCashOrder(c *gin.Context) {
	orderID := c.Param("order_id")

	var req dto.OperatorActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	err := h.inventory.CompleteCashOrder(c.Request.Context(), orderID, req.OperatorID)
	switch {
	case errors.Is(err, inventory.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
	case errors.Is(err, inventory.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Order is not awaiting payout",
		})
	case err != nil:
		h.logger.Error("Failed to complete cash order", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to complete order",
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"order_id": orderID,
			"status":   inventory.CashOrderCompleted,
		})
	}
}

// RejectCashOrder handles POST /api/v1/admin/cash/:order_id/reject
// Rejecting an order the user already confirmed refunds it exactly once.
func (h *OrderHandler) RejectCashOrder(c *gin.Context) {
	orderID := c.Param("order_id")

	var req dto.OperatorActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}
	if req.Note == "" {
		req.Note = "rejected by operator"
	}

	err := h.inventory.RejectCashOrder(c.Request.Context(), orderID, req.OperatorID, req.Note)
	switch {
	case errors.Is(err, inventory.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
	case errors.Is(err, inventory.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Order is already terminal",
		})
	case err != nil:
		h.logger.Error("Failed to reject cash order", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to reject order",
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"order_id": orderID,
			"status":   inventory.CashOrderRejected,
		})
	}
}
