package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReviewResourceType names the kind of resource a review request covers.
type ReviewResourceType string

const (
	ResourceOfferLetter      ReviewResourceType = "offer_letter"
	ResourceEscrowAttendance ReviewResourceType = "escrow_attendance"
	ResourceDocumentPackage  ReviewResourceType = "document_package"
)

// Valid reports whether r is a known resource type.
func (r ReviewResourceType) Valid() bool {
	switch r {
	case ResourceOfferLetter, ResourceEscrowAttendance, ResourceDocumentPackage:
		return true
	}
	return false
}

// ReviewStatus is the aggregate state of a review request.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewComplete ReviewStatus = "complete"
	ReviewDeclined ReviewStatus = "declined"
)

// ReviewDecision is a single approver's verdict on one stage.
type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "approved"
	DecisionDeclined ReviewDecision = "declined"
)

// ReviewRequestTypeStage is one row of the stage configuration table, keyed
// by organization type, resource type and stage type.
type ReviewRequestTypeStage struct {
	ID               uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationType OrganizationType   `gorm:"type:varchar(20);not null;uniqueIndex:idx_review_type_stage" json:"organization_type"`
	ResourceType     ReviewResourceType `gorm:"type:varchar(32);not null;uniqueIndex:idx_review_type_stage" json:"resource_type"`
	StageType        string             `gorm:"size:64;not null;uniqueIndex:idx_review_type_stage" json:"stage_type"`
	Name             string             `gorm:"size:120" json:"name"`
	Position         int                `gorm:"not null" json:"position"`
	Enabled          bool               `gorm:"not null" json:"enabled"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ReviewRequestTypeStage) TableName() string {
	return "review_request_type_stages"
}

// BeforeCreate assigns the configuration row ID.
func (s *ReviewRequestTypeStage) BeforeCreate(_ *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// ReviewRequest is an instance of the stage configuration for one resource.
type ReviewRequest struct {
	ID               uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationType OrganizationType   `gorm:"type:varchar(20);not null" json:"organization_type"`
	OrganizationID   uuid.UUID          `gorm:"type:uuid;not null;index" json:"organization_id"`
	ResourceType     ReviewResourceType `gorm:"type:varchar(32);not null;index:idx_review_resource" json:"resource_type"`
	ResourceID       uuid.UUID          `gorm:"type:uuid;not null;index:idx_review_resource" json:"resource_id"`
	Status           ReviewStatus       `gorm:"type:varchar(20);not null;index" json:"status"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	DeclinedAt       *time.Time         `json:"declined_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`

	Stages    []ReviewRequestStage    `gorm:"foreignKey:ReviewRequestID" json:"stages,omitempty"`
	Approvals []ReviewRequestApproval `gorm:"foreignKey:ReviewRequestID" json:"approvals,omitempty"`
}

// TableName specifies the table name for GORM
func (ReviewRequest) TableName() string {
	return "review_requests"
}

// BeforeCreate assigns the request ID.
func (r *ReviewRequest) BeforeCreate(_ *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// ReviewRequestStage is the immutable snapshot of one enabled stage taken when
// the request was created.
type ReviewRequestStage struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReviewRequestID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_snapshot" json:"review_request_id"`
	StageTypeID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_snapshot" json:"stage_type_id"`
	StageType       string    `gorm:"size:64;not null" json:"stage_type"`
	Position        int       `gorm:"not null" json:"position"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (ReviewRequestStage) TableName() string {
	return "review_request_stages"
}

// BeforeCreate assigns the snapshot row ID.
func (s *ReviewRequestStage) BeforeCreate(_ *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// ReviewRequestApproval is the single decision recorded for a (request, stage) pair.
type ReviewRequestApproval struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ReviewRequestID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_review_approval" json:"review_request_id"`
	StageTypeID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_review_approval" json:"stage_type_id"`
	OrganizationID  uuid.UUID      `gorm:"type:uuid;not null" json:"organization_id"`
	ApproverID      uuid.UUID      `gorm:"type:uuid;not null" json:"approver_id"`
	Decision        ReviewDecision `gorm:"type:varchar(20);not null" json:"decision"`
	Comment         string         `gorm:"type:text" json:"comment,omitempty"`
	DecidedAt       time.Time      `gorm:"not null" json:"decided_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ReviewRequestApproval) TableName() string {
	return "review_request_approvals"
}

// BeforeCreate assigns the approval ID.
func (a *ReviewRequestApproval) BeforeCreate(_ *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
