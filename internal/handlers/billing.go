package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/backend/internal/services"
	"github.com/teamforge/backend/pkg/logger"
)

// BillingHandler consumes payment-provider webhook notifications and
// applies them to the team's subscription fields.
type BillingHandler struct {
	billing       *services.BillingService
	webhookSecret string
}

func NewBillingHandler(billing *services.BillingService, webhookSecret string) *BillingHandler {
	return &BillingHandler{billing: billing, webhookSecret: webhookSecret}
}

type billingEvent struct {
	Type string `json:"type"`
	Data struct {
		TeamID         uint   `json:"team_id"`
		CustomerID     string `json:"customer_id"`
		SubscriptionID string `json:"subscription_id"`
		ProductID      string `json:"product_id"`
		PlanName       string `json:"plan_name"`
		Status         string `json:"status"`
	} `json:"data"`
}

// HandleWebhook processes a signed provider event.
// POST /api/billing/webhook
func (h *BillingHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if h.webhookSecret != "" && !verifyWebhookSignature(h.webhookSecret, body, signature) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
		return
	}

	var event billingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		err = h.billing.HandleCheckoutCompleted(event.Data.TeamID, event.Data.CustomerID,
			event.Data.SubscriptionID, event.Data.ProductID, event.Data.PlanName)
	case "customer.subscription.updated":
		err = h.billing.HandleSubscriptionChange(event.Data.CustomerID, event.Data.SubscriptionID,
			event.Data.ProductID, event.Data.PlanName, event.Data.Status)
	case "customer.subscription.deleted":
		err = h.billing.HandleSubscriptionChange(event.Data.CustomerID, event.Data.SubscriptionID,
			event.Data.ProductID, event.Data.PlanName, "canceled")
	default:
		logger.Debug().Str("type", event.Type).Msg("ignoring unhandled billing event")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err != nil {
		logger.Error().Err(err).Str("type", event.Type).Msg("failed to process billing event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func verifyWebhookSignature(secret string, body []byte, signature string) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedMAC := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.TrimPrefix(signature, "sha256=")), []byte(expectedMAC))
}
