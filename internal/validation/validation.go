// Package validation checks caller input before any state is touched.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"keyhouse/internal/models"
)

const (
	maxReasonLength  = 500
	maxReasons       = 10
	maxFullNameChars = 200
)

var (
	timeOfDayRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	phoneRegex     = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,30}$`)
)

// ValidateTimeOfDay checks an HH:MM (24h) value.
func ValidateTimeOfDay(value string) error {
	if !timeOfDayRegex.MatchString(value) {
		return fmt.Errorf("time %q must be HH:MM in 24-hour format", value)
	}
	return nil
}

// ValidateSlotWindow checks both bounds and that start is strictly before end.
func ValidateSlotWindow(start, end string) error {
	if err := ValidateTimeOfDay(start); err != nil {
		return err
	}
	if err := ValidateTimeOfDay(end); err != nil {
		return err
	}
	// Zero-padded HH:MM compares correctly as a string.
	if start >= end {
		return fmt.Errorf("start time %s must be before end time %s", start, end)
	}
	return nil
}

// ParseDayOfWeek normalizes and checks a weekday name.
func ParseDayOfWeek(value string) (models.Weekday, error) {
	day, ok := models.ParseWeekday(value)
	if !ok {
		return "", fmt.Errorf("unknown day of week %q", value)
	}
	return day, nil
}

// InspectionContact is the buyer contact detail captured at booking time.
type InspectionContact struct {
	FullName    string
	Email       string
	Phone       string
	MeetingMode models.MeetingMode
}

// ValidateInspectionContact checks booking contact details.
func ValidateInspectionContact(c InspectionContact) error {
	name := strings.TrimSpace(c.FullName)
	if name == "" {
		return fmt.Errorf("full name is required")
	}
	if len(name) > maxFullNameChars {
		return fmt.Errorf("full name must be at most %d characters", maxFullNameChars)
	}
	addr, err := mail.ParseAddress(c.Email)
	if err != nil || addr.Address != strings.TrimSpace(c.Email) {
		return fmt.Errorf("email %q is not a valid address", c.Email)
	}
	if c.Phone != "" && !phoneRegex.MatchString(c.Phone) {
		return fmt.Errorf("phone %q is not a valid number", c.Phone)
	}
	switch c.MeetingMode {
	case models.MeetingInPerson, models.MeetingVirtual:
	default:
		return fmt.Errorf("meeting mode must be %q or %q", models.MeetingInPerson, models.MeetingVirtual)
	}
	return nil
}

// ValidateReason checks an optional free-text reason.
func ValidateReason(reason string) error {
	if len(reason) > maxReasonLength {
		return fmt.Errorf("reason must be at most %d characters", maxReasonLength)
	}
	return nil
}

// NormalizeReasons trims decline reasons, drops blanks and requires at least one.
func NormalizeReasons(reasons []string) ([]string, error) {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if err := ValidateReason(r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one reason is required")
	}
	if len(out) > maxReasons {
		return nil, fmt.Errorf("at most %d reasons are allowed", maxReasons)
	}
	return out, nil
}

// ValidateDueDate rejects due dates that are already in the past.
func ValidateDueDate(due, now time.Time) error {
	if !due.After(now) {
		return fmt.Errorf("due date must be in the future")
	}
	return nil
}

// ValidateLoanTerms checks a repayment plan.
func ValidateLoanTerms(principalMinor int64, tenorMonths int) error {
	if principalMinor <= 0 {
		return fmt.Errorf("principal must be positive")
	}
	if tenorMonths < 1 || tenorMonths > 360 {
		return fmt.Errorf("tenor must be between 1 and 360 months")
	}
	return nil
}
