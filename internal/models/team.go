package models

import "time"

// Team is the tenancy unit: a billing and membership grouping.
// Billing linkage fields stay null until a subscription exists.
type Team struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	Name                 string    `gorm:"size:100;not null" json:"name"`
	StripeCustomerID     *string   `gorm:"uniqueIndex;size:255" json:"stripe_customer_id"`
	StripeSubscriptionID *string   `gorm:"size:255" json:"stripe_subscription_id"`
	StripeProductID      *string   `gorm:"size:255" json:"stripe_product_id"`
	PlanName             *string   `gorm:"size:100" json:"plan_name"`
	SubscriptionStatus   *string   `gorm:"size:50" json:"subscription_status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (Team) TableName() string { return "teams" }
