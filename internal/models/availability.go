package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Weekday is a lowercase day-of-week name.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// ParseWeekday normalizes s into a Weekday. ok is false for unknown names.
func ParseWeekday(s string) (Weekday, bool) {
	d := Weekday(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return d, true
	}
	return "", false
}

// TimeWeekday converts d to the standard library weekday.
func (d Weekday) TimeWeekday() time.Weekday {
	switch d {
	case Monday:
		return time.Monday
	case Tuesday:
		return time.Tuesday
	case Wednesday:
		return time.Wednesday
	case Thursday:
		return time.Thursday
	case Friday:
		return time.Friday
	case Saturday:
		return time.Saturday
	}
	return time.Sunday
}

// DayAvailability is a named slot template owned by an organization.
type DayAvailability struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string    `gorm:"size:120;not null" json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Slots []DayAvailabilitySlot `gorm:"foreignKey:DayAvailabilityID" json:"slots,omitempty"`
}

// TableName specifies the table name for GORM
func (DayAvailability) TableName() string {
	return "day_availabilities"
}

// BeforeCreate assigns the template ID.
func (d *DayAvailability) BeforeCreate(_ *gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// DayAvailabilitySlot is a concrete bookable interval. IsAvailable is the only
// concurrency guard for booking and is flipped with conditional writes.
type DayAvailabilitySlot struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DayAvailabilityID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_slot_template_day" json:"day_availability_id"`
	OrganizationID    uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	DayOfWeek         Weekday   `gorm:"type:varchar(10);not null;uniqueIndex:idx_slot_template_day" json:"day_of_week"`
	StartTime         string    `gorm:"size:5;not null" json:"start_time"`
	EndTime           string    `gorm:"size:5;not null" json:"end_time"`
	IsAvailable       bool      `gorm:"not null;index" json:"is_available"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (DayAvailabilitySlot) TableName() string {
	return "day_availability_slots"
}

// BeforeCreate assigns the slot ID.
func (s *DayAvailabilitySlot) BeforeCreate(_ *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
