package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ApplicationType selects the stage plan an application follows.
type ApplicationType string

const (
	// ApplicationTypeMortgage is a purchase financed through a lender.
	ApplicationTypeMortgage ApplicationType = "mortgage"
	// ApplicationTypeOutright is a cash purchase with no loan stages.
	ApplicationTypeOutright ApplicationType = "outright_purchase"
)

// ApplicationStageName is a named phase of the application lifecycle.
type ApplicationStageName string

const (
	StageCreated            ApplicationStageName = "created"
	StagePrequalification   ApplicationStageName = "prequalification"
	StageEligibilityCheck   ApplicationStageName = "eligibility_check"
	StageOfferLetter        ApplicationStageName = "offer_letter"
	StageInspection         ApplicationStageName = "inspection"
	StageEscrow             ApplicationStageName = "escrow"
	StageConditionPrecedent ApplicationStageName = "condition_precedent"
	StageLoanDecision       ApplicationStageName = "loan_decision"
	StageClosed             ApplicationStageName = "closed"
	StageDeclined           ApplicationStageName = "declined"
)

// Terminal reports whether no further transition is possible from s.
func (s ApplicationStageName) Terminal() bool {
	return s == StageClosed || s == StageDeclined
}

// Application is a buyer's purchase or loan request. It holds non-owning
// references to the sub-entities created along its lifecycle.
type Application struct {
	ID                      uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	Type                    ApplicationType      `gorm:"type:varchar(32);not null" json:"type"`
	BuyerID                 uuid.UUID            `gorm:"type:uuid;not null;index" json:"buyer_id"`
	DeveloperOrganizationID uuid.UUID            `gorm:"type:uuid;not null;index" json:"developer_organization_id"`
	CurrentStage            ApplicationStageName `gorm:"type:varchar(32);not null;index" json:"current_stage"`
	EligibilityID           *uuid.UUID           `gorm:"type:uuid" json:"eligibility_id,omitempty"`
	OfferLetterID           *uuid.UUID           `gorm:"type:uuid" json:"offer_letter_id,omitempty"`
	InspectionID            *uuid.UUID           `gorm:"type:uuid" json:"inspection_id,omitempty"`
	EscrowID                *uuid.UUID           `gorm:"type:uuid" json:"escrow_id,omitempty"`
	ConditionPrecedentID    *uuid.UUID           `gorm:"type:uuid" json:"condition_precedent_id,omitempty"`
	LoanOfferID             *uuid.UUID           `gorm:"type:uuid" json:"loan_offer_id,omitempty"`
	LenderOrganizationID    *uuid.UUID           `gorm:"type:uuid" json:"lender_organization_id,omitempty"`
	LoanDecisionID          *uuid.UUID           `gorm:"type:uuid" json:"loan_decision_id,omitempty"`
	DeclineReasons          datatypes.JSON       `json:"decline_reasons,omitempty"`
	DeclinedAt              *time.Time           `json:"declined_at,omitempty"`
	CreatedAt               time.Time            `json:"created_at"`
	UpdatedAt               time.Time            `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Application) TableName() string {
	return "applications"
}

// BeforeCreate assigns the application ID.
func (a *Application) BeforeCreate(_ *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// ApplicationStage is one row of the append-only stage history. At most one
// row per application has a nil ExitTime.
type ApplicationStage struct {
	ID            uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID uuid.UUID            `gorm:"type:uuid;not null;index:idx_stage_history_app" json:"application_id"`
	Stage         ApplicationStageName `gorm:"type:varchar(32);not null" json:"stage"`
	EntryTime     time.Time            `gorm:"not null;index:idx_stage_history_app" json:"entry_time"`
	ExitTime      *time.Time           `json:"exit_time,omitempty"`
	ActorID       uuid.UUID            `gorm:"type:uuid" json:"actor_id"`
	Metadata      datatypes.JSONMap    `json:"metadata,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ApplicationStage) TableName() string {
	return "application_stages"
}

// BeforeCreate assigns the history row ID.
func (s *ApplicationStage) BeforeCreate(_ *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// EligibilityStatus is the outcome of the eligibility check.
type EligibilityStatus string

const (
	EligibilityPending    EligibilityStatus = "pending"
	EligibilityEligible   EligibilityStatus = "eligible"
	EligibilityIneligible EligibilityStatus = "ineligible"
)

// Eligibility records the lender-side eligibility assessment of an application.
type Eligibility struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID      uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex" json:"application_id"`
	Status             EligibilityStatus `gorm:"type:varchar(20);not null" json:"status"`
	MaxLoanAmountMinor int64             `json:"max_loan_amount_minor"`
	AssessedBy         uuid.UUID         `gorm:"type:uuid" json:"assessed_by"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (Eligibility) TableName() string {
	return "eligibilities"
}

func (e *Eligibility) BeforeCreate(_ *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// OfferLetterStatus tracks an offer letter from review to buyer acceptance.
type OfferLetterStatus string

const (
	OfferLetterPendingReview OfferLetterStatus = "pending_review"
	OfferLetterApproved      OfferLetterStatus = "approved"
	OfferLetterDeclined      OfferLetterStatus = "declined"
	OfferLetterAccepted      OfferLetterStatus = "accepted"
)

// OfferLetter is issued by the developer and goes through the review engine
// before the buyer can accept it.
type OfferLetter struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID   uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex" json:"application_id"`
	ReviewRequestID *uuid.UUID        `gorm:"type:uuid" json:"review_request_id,omitempty"`
	Status          OfferLetterStatus `gorm:"type:varchar(20);not null" json:"status"`
	DocumentURL     string            `gorm:"size:512" json:"document_url"`
	AcceptedAt      *time.Time        `json:"accepted_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (OfferLetter) TableName() string {
	return "offer_letters"
}

func (o *OfferLetter) BeforeCreate(_ *gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// EscrowStatus tracks escrow attendance review.
type EscrowStatus string

const (
	EscrowPendingReview EscrowStatus = "pending_review"
	EscrowCompleted     EscrowStatus = "completed"
	EscrowDeclined      EscrowStatus = "declined"
)

// EscrowInformation records the escrow attendance for an application.
type EscrowInformation struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID   uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex" json:"application_id"`
	ReviewRequestID *uuid.UUID   `gorm:"type:uuid" json:"review_request_id,omitempty"`
	Status          EscrowStatus `gorm:"type:varchar(20);not null" json:"status"`
	AttendanceDate  *time.Time   `json:"attendance_date,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (EscrowInformation) TableName() string {
	return "escrow_information"
}

func (e *EscrowInformation) BeforeCreate(_ *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
