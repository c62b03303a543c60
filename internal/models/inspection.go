package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InspectionStatus is the lifecycle state of a property inspection.
type InspectionStatus string

const (
	InspectionScheduled               InspectionStatus = "scheduled"
	InspectionRescheduled             InspectionStatus = "rescheduled"
	InspectionAttended                InspectionStatus = "attended"
	InspectionNotAttended             InspectionStatus = "not_attended"
	InspectionCancelledByUser         InspectionStatus = "cancelled_by_user"
	InspectionCancelledByOrganization InspectionStatus = "cancelled_by_organization"
)

// Active reports whether the inspection still holds its slot.
func (s InspectionStatus) Active() bool {
	return s == InspectionScheduled || s == InspectionRescheduled
}

// Cancelled reports whether the inspection was cancelled by either side.
func (s InspectionStatus) Cancelled() bool {
	return s == InspectionCancelledByUser || s == InspectionCancelledByOrganization
}

// MeetingMode is how the buyer attends the inspection.
type MeetingMode string

const (
	MeetingInPerson MeetingMode = "in_person"
	MeetingVirtual  MeetingMode = "virtual"
)

// Inspection is one booking against exactly one slot.
type Inspection struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID  *uuid.UUID       `gorm:"type:uuid;index" json:"application_id,omitempty"`
	SlotID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"slot_id"`
	OrganizationID uuid.UUID        `gorm:"type:uuid;not null;index" json:"organization_id"`
	UserID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	InspectionDate time.Time        `json:"inspection_date"`
	FullName       string           `gorm:"size:200;not null" json:"full_name"`
	Email          string           `gorm:"size:255;not null" json:"email"`
	Phone          string           `gorm:"size:32" json:"phone"`
	MeetingMode    MeetingMode      `gorm:"type:varchar(20);not null" json:"meeting_mode"`
	FeePaid        bool             `gorm:"not null" json:"fee_paid"`
	FeePaidAt      *time.Time       `json:"fee_paid_at,omitempty"`
	Status         InspectionStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	CancelledAt    *time.Time       `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Inspection) TableName() string {
	return "inspections"
}

// BeforeCreate assigns the inspection ID.
func (i *Inspection) BeforeCreate(_ *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// RescheduleStatus is the negotiation state of a reschedule request.
type RescheduleStatus string

const (
	RescheduleProposed       RescheduleStatus = "Proposed"
	RescheduleAcceptedByUser RescheduleStatus = "AcceptedByUser"
	RescheduleRejectedByUser RescheduleStatus = "RejectedByUser"
)

// Terminal reports whether the request has been resolved.
func (s RescheduleStatus) Terminal() bool {
	return s == RescheduleAcceptedByUser || s == RescheduleRejectedByUser
}

// ProposerSide identifies which party opened a negotiation.
type ProposerSide string

const (
	ProposerUser         ProposerSide = "user"
	ProposerOrganization ProposerSide = "organization"
)

// InspectionRescheduleRequest is a slot-swap negotiation. Once resolved it is
// never mutated again.
type InspectionRescheduleRequest struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	InspectionID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"inspection_id"`
	OriginalSlotID  uuid.UUID        `gorm:"type:uuid;not null" json:"original_slot_id"`
	ProposedSlotID  uuid.UUID        `gorm:"type:uuid;not null" json:"proposed_slot_id"`
	ProposedBy      uuid.UUID        `gorm:"type:uuid;not null" json:"proposed_by"`
	ProposerSide    ProposerSide     `gorm:"type:varchar(20);not null" json:"proposer_side"`
	Status          RescheduleStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	RejectionReason string           `gorm:"type:text" json:"rejection_reason,omitempty"`
	ResolvedBy      *uuid.UUID       `gorm:"type:uuid" json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (InspectionRescheduleRequest) TableName() string {
	return "inspection_reschedule_requests"
}

// BeforeCreate assigns the request ID.
func (r *InspectionRescheduleRequest) BeforeCreate(_ *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
