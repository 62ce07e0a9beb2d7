package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mhixter/arapointx-sub002/internal/api/dto"
	"github.com/Mhixter/arapointx-sub002/internal/inventory"
)

// PurchasePin handles POST /api/v1/pins/purchase
// The order is recorded as paid before allocation; an OutOfStock outcome
// arrives here already refunded.
func (h *OrderHandler) PurchasePin(c *gin.Context) {
	var req dto.PurchasePinRequest
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

	order, pin, err := h.inventory.PurchasePIN(c.Request.Context(), req.RequesterID, req.ExamType, req.Amount)
	if errors.Is(err, inventory.ErrOutOfStock) {
		c.JSON(http.StatusConflict, gin.H{
			"error":    "No PINs available for this exam type",
			"code":     "out_of_stock",
			"order_id": order.OrderID,
			"refunded": order.Refunded,
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to purchase pin", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to purchase pin",
		})
		return
	}

	c.JSON(http.StatusOK, dto.PurchasePinResponse{
		OrderID:  order.OrderID,
		Status:   order.Status,
		PinCode:  pin.PinCode,
		Serial:   pin.SerialNumber,
		Refunded: order.Refunded,
	})
}

// GetPinOrder handles GET /api/v1/pins/orders/:order_id
func (h *OrderHandler) GetPinOrder(c *gin.Context) {
	orderID := c.Param("order_id")
	requesterID := c.Query("requester_id")
	if requesterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "requester_id is required",
		})
		return
	}

	order, err := h.inventory.GetPinOrder(c.Request.Context(), orderID, requesterID)
	if errors.Is(err, inventory.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get pin order", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get order",
		})
		return
	}

	resp := dto.PurchasePinResponse{
		OrderID:  order.OrderID,
		Status:   order.Status,
		Refunded: order.Refunded,
	}
	c.JSON(http.StatusOK, resp)
}
