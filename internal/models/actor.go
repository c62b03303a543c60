// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrganizationType scopes review-stage configuration and authorization checks.
type OrganizationType string

const (
	// OrganizationTypeDeveloper is a property developer hosting inspections.
	OrganizationTypeDeveloper OrganizationType = "developer"
	// OrganizationTypeLender is a mortgage lender.
	OrganizationTypeLender OrganizationType = "lender"
	// OrganizationTypeHSF is the housing support fund reviewing condition precedents.
	OrganizationTypeHSF OrganizationType = "hsf"
	// OrganizationTypePlatform is the platform operator.
	OrganizationTypePlatform OrganizationType = "platform"
)

// Valid reports whether t is a known organization type.
func (t OrganizationType) Valid() bool {
	switch t {
	case OrganizationTypeDeveloper, OrganizationTypeLender, OrganizationTypeHSF, OrganizationTypePlatform:
		return true
	}
	return false
}

// Actor is the already-authenticated caller of a mutating operation.
// Buyers carry a zero OrganizationID.
type Actor struct {
	UserID           uuid.UUID
	OrganizationID   uuid.UUID
	OrganizationType OrganizationType
}

// IsOrganization reports whether the actor acts on behalf of an organization.
func (a Actor) IsOrganization() bool {
	return a.OrganizationID != uuid.Nil
}

// ActsFor reports whether the actor belongs to the given organization.
func (a Actor) ActsFor(orgID uuid.UUID) bool {
	return a.IsOrganization() && a.OrganizationID == orgID
}

// ensureID assigns a fresh identifier to entities created without one.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// PaymentPurpose identifies what an external payment settled.
type PaymentPurpose string

const (
	PaymentPurposeInspectionFee PaymentPurpose = "inspection_fee"
	PaymentPurposeProcessingFee PaymentPurpose = "processing_fee"
	PaymentPurposeManagementFee PaymentPurpose = "management_fee"
)

// PaymentReceipt records each confirmed external transaction exactly once.
type PaymentReceipt struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID string         `gorm:"size:128;not null;uniqueIndex" json:"transaction_id"`
	Purpose       PaymentPurpose `gorm:"type:varchar(32);not null" json:"purpose"`
	ReferenceID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"reference_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// BeforeCreate assigns the receipt ID.
func (p *PaymentReceipt) BeforeCreate(_ *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
