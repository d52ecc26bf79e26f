package handler

import (
	"net/http"

	"photo-generator/internal/payment"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreatePayment(c *gin.Context) {
	var in payment.CreatePaymentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email, name and packageTier are required"})
		return
	}

	res, err := h.deps.Payments.CreatePayment(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "failed to create payment")
		return
	}
	c.JSON(http.StatusCreated, res)
}

// PaymentWebhook receives gateway status notifications. Repeated deliveries
// are acknowledged without side effects.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	var n payment.Notification
	if err := c.ShouldBindJSON(&n); err != nil || n.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid notification"})
		return
	}

	res, err := h.deps.Payments.HandleNotification(c.Request.Context(), n)
	if err != nil {
		h.fail(c, err, "failed to process notification")
		return
	}
	c.JSON(http.StatusOK, res)
}
