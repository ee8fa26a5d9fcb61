package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"handyconnect-server/services"
)

// RegisterPaymentRoutes registers payment intent creation and confirmation.
// Every route answers 503 when no gateway is configured.
func RegisterPaymentRoutes(api *gin.RouterGroup, h *handlers, auth gin.HandlerFunc) {
	api.POST("/create-payment-intent", auth, h.requirePayments, h.createPaymentIntent)
	payments := api.Group("/payments", auth, h.requirePayments)
	{
		payments.GET("", h.listPayments)
		payments.POST("/:id/confirm", h.confirmPayment)
	}
}

func (h *handlers) requirePayments(c *gin.Context) {
	if !h.Payments.Enabled() {
		respondError(c, services.Unavailable("Payments are not configured"))
		c.Abort()
		return
	}
	c.Next()
}

func (h *handlers) createPaymentIntent(c *gin.Context) {
	var input services.CreatePaymentInput
	if !bindJSON(c, &input) {
		return
	}
	created, err := h.Payments.CreateIntent(c.Request.Context(), currentUser(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{
		"clientSecret": created.ClientSecret,
		"paymentId":    created.Payment.ID,
	})
}

func (h *handlers) confirmPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	payment, err := h.Payments.Confirm(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, payment)
}

func (h *handlers) listPayments(c *gin.Context) {
	payments, err := h.Payments.ListForUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, payments)
}
