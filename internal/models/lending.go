package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PrecedentStatus is the state of a condition precedent.
type PrecedentStatus string

const (
	PrecedentPending   PrecedentStatus = "pending"
	PrecedentInReview  PrecedentStatus = "in_review"
	PrecedentCompleted PrecedentStatus = "completed"
	PrecedentExpired   PrecedentStatus = "expired"
)

// ReviewerSide is the organization side signing off condition-precedent documents.
type ReviewerSide string

const (
	ReviewerHSF    ReviewerSide = "hsf"
	ReviewerLender ReviewerSide = "lender"
)

// ConditionPrecedent gates loan decisioning on dual document review.
type ConditionPrecedent struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"application_id"`
	Status             PrecedentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	HSFDocsReviewed    bool            `gorm:"column:hsf_docs_reviewed;not null" json:"hsf_docs_reviewed"`
	HSFReviewedBy      *uuid.UUID      `gorm:"column:hsf_reviewed_by;type:uuid" json:"hsf_reviewed_by,omitempty"`
	HSFReviewedAt      *time.Time      `gorm:"column:hsf_reviewed_at" json:"hsf_reviewed_at,omitempty"`
	LenderDocsReviewed bool            `gorm:"not null" json:"lender_docs_reviewed"`
	LenderReviewedBy   *uuid.UUID      `gorm:"type:uuid" json:"lender_reviewed_by,omitempty"`
	LenderReviewedAt   *time.Time      `json:"lender_reviewed_at,omitempty"`
	DocumentName       string          `gorm:"size:255" json:"document_name"`
	DocumentURL        string          `gorm:"size:512" json:"document_url"`
	DueDate            *time.Time      `gorm:"index" json:"due_date,omitempty"`
	CompletedDate      *time.Time      `json:"completed_date,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ConditionPrecedent) TableName() string {
	return "condition_precedents"
}

// BeforeCreate assigns the precedent ID.
func (c *ConditionPrecedent) BeforeCreate(_ *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// DeriveStatus returns the status implied by the two review flags.
func (c *ConditionPrecedent) DeriveStatus() PrecedentStatus {
	switch {
	case c.HSFDocsReviewed && c.LenderDocsReviewed:
		return PrecedentCompleted
	case c.HSFDocsReviewed || c.LenderDocsReviewed:
		return PrecedentInReview
	default:
		return PrecedentPending
	}
}

// LoanDecisionStatus is the outcome of loan decisioning.
type LoanDecisionStatus string

const (
	LoanDecisionPending  LoanDecisionStatus = "pending"
	LoanDecisionApproved LoanDecisionStatus = "approved"
	LoanDecisionDeclined LoanDecisionStatus = "declined"
)

// LoanDecision is created when an application enters loan decisioning and is
// mutated only by fee confirmations and the lender's decision.
type LoanDecision struct {
	ID                   uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID        uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex" json:"application_id"`
	LoanOfferID          uuid.UUID          `gorm:"type:uuid;not null" json:"loan_offer_id"`
	LenderOrganizationID uuid.UUID          `gorm:"type:uuid;not null;index" json:"lender_organization_id"`
	Status               LoanDecisionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ProcessingFeePaidAt  *time.Time         `json:"processing_fee_paid_at,omitempty"`
	ManagementFeePaidAt  *time.Time         `json:"management_fee_paid_at,omitempty"`
	PrincipalMinor       int64              `json:"principal_minor"`
	TenorMonths          int                `json:"tenor_months"`
	Reason               string             `gorm:"type:text" json:"reason,omitempty"`
	DecidedBy            *uuid.UUID         `gorm:"type:uuid" json:"decided_by,omitempty"`
	DecidedAt            *time.Time         `json:"decided_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (LoanDecision) TableName() string {
	return "loan_decisions"
}

// BeforeCreate assigns the decision ID.
func (d *LoanDecision) BeforeCreate(_ *gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// RepaymentStatus tracks a single installment.
type RepaymentStatus string

const (
	RepaymentPending RepaymentStatus = "pending"
	RepaymentPaid    RepaymentStatus = "paid"
	RepaymentOverdue RepaymentStatus = "overdue"
)

// LoanRepayment is one scheduled installment of an approved loan.
type LoanRepayment struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	LoanDecisionID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_repayment_installment" json:"loan_decision_id"`
	InstallmentNo  int             `gorm:"not null;uniqueIndex:idx_repayment_installment" json:"installment_no"`
	DueDate        time.Time       `gorm:"not null;index" json:"due_date"`
	AmountMinor    int64           `gorm:"not null" json:"amount_minor"`
	Status         RepaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (LoanRepayment) TableName() string {
	return "loan_repayments"
}

// BeforeCreate assigns the installment ID.
func (r *LoanRepayment) BeforeCreate(_ *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
