package services

import (
	"errors"

	"github.com/teamforge/backend/internal/models"
	"github.com/teamforge/backend/pkg/logger"
	"gorm.io/gorm"
)

var ErrUnknownCustomer = errors.New("no team for billing customer")

// BillingService maintains the subscription linkage fields on the team
// row. The payment provider is the source of truth; this layer only
// consumes its webhook notifications.
type BillingService struct {
	db *gorm.DB
}

func NewBillingService(db *gorm.DB) *BillingService {
	return &BillingService{db: db}
}

func (s *BillingService) GetTeamByCustomerID(customerID string) (*models.Team, error) {
	var team models.Team
	err := s.db.Where("stripe_customer_id = ?", customerID).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownCustomer
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// SubscriptionUpdate carries the provider-side subscription state to
// apply to a team. Nil pointers clear the corresponding column.
type SubscriptionUpdate struct {
	SubscriptionID *string
	ProductID      *string
	PlanName       *string
	Status         string
}

func (s *BillingService) UpdateSubscription(teamID uint, upd SubscriptionUpdate) error {
	return s.db.Model(&models.Team{}).Where("id = ?", teamID).Updates(map[string]interface{}{
		"stripe_subscription_id": upd.SubscriptionID,
		"stripe_product_id":      upd.ProductID,
		"plan_name":              upd.PlanName,
		"subscription_status":    upd.Status,
	}).Error
}

// HandleCheckoutCompleted links the provider customer to the team and
// records the fresh subscription.
func (s *BillingService) HandleCheckoutCompleted(teamID uint, customerID, subscriptionID, productID, planName string) error {
	var team models.Team
	if err := s.db.First(&team, teamID).Error; err != nil {
		return err
	}

	return s.db.Model(&team).Updates(map[string]interface{}{
		"stripe_customer_id":     customerID,
		"stripe_subscription_id": subscriptionID,
		"stripe_product_id":      productID,
		"plan_name":              planName,
		"subscription_status":    "active",
	}).Error
}

// HandleSubscriptionChange applies a subscription update or deletion
// notification. Active and trialing keep the plan linkage; any other
// status drops it, leaving only the status itself.
func (s *BillingService) HandleSubscriptionChange(customerID, subscriptionID, productID, planName, status string) error {
	team, err := s.GetTeamByCustomerID(customerID)
	if err != nil {
		if errors.Is(err, ErrUnknownCustomer) {
			logger.Warn().Str("customer_id", customerID).Msg("subscription event for unknown customer")
		}
		return err
	}

	switch status {
	case "active", "trialing":
		return s.UpdateSubscription(team.ID, SubscriptionUpdate{
			SubscriptionID: &subscriptionID,
			ProductID:      &productID,
			PlanName:       &planName,
			Status:         status,
		})
	default:
		return s.UpdateSubscription(team.ID, SubscriptionUpdate{Status: status})
	}
}
