package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CustomerID   *uint           `gorm:"index:idx_audit_customer_id" json:"customer_id,omitempty"`
	Customer     *Customer       `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	Action       string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:inet;index:idx_audit_ip_address" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb;index:idx_audit_metadata,type:gin" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionFilmPurchased          = "film_purchased"
	AuditActionFilmRented             = "film_rented"
	AuditActionPurchaseFailed         = "purchase_failed"
	AuditActionFundsAdded             = "funds_added"
	AuditActionDistroTransfer         = "distro_transfer"
	AuditActionPaypalCheckoutCreated  = "paypal_checkout_created"
	AuditActionPaypalCheckoutExecuted = "paypal_checkout_executed"
	AuditActionPaypalCheckoutFailed   = "paypal_checkout_failed"
	AuditActionPaypalCheckoutCanceled = "paypal_checkout_cancelled"
	AuditActionStripeWebhookProcessed = "stripe_webhook_processed"
	AuditActionStripeWebhookRejected  = "stripe_webhook_rejected"
	AuditActionStripeWebhookDuplicate = "stripe_webhook_duplicate"
	AuditActionGrantExpired           = "grant_expired"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	CustomerID    *uint
	Action        *string
	Success       *bool
	IPAddress     *string
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
