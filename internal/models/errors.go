package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes shared by every engine. Handlers map them onto HTTP statuses.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodePrecondition = "PRECONDITION_FAILED"
	CodeForbidden    = "FORBIDDEN"
	CodeInternal     = "INTERNAL_ERROR"
)

// Sentinel causes carried inside AppError so callers can use errors.Is.
var (
	ErrSlotUnavailable        = errors.New("slot unavailable")
	ErrDuplicateSlot          = errors.New("duplicate slot")
	ErrStaleStage             = errors.New("stale stage")
	ErrStageGateNotSatisfied  = errors.New("stage gate not satisfied")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrReviewRequestNotActive = errors.New("review request not pending")
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Condition string `json:"condition,omitempty"`
	Details   string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Reason  string
	Message string
	// Condition names the unmet gate for STAGE_GATE_NOT_SATISFIED errors.
	Condition string
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Code == CodeInternal {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewPreconditionError(message string) *AppError {
	return &AppError{
		Code:    CodePrecondition,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// NewSlotUnavailableError is returned when a booking or swap loses the slot race.
func NewSlotUnavailableError(slotID interface{}) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Reason:  "SLOT_UNAVAILABLE",
		Message: fmt.Sprintf("slot %v is no longer available", slotID),
		Err:     ErrSlotUnavailable,
	}
}

func NewDuplicateSlotError(templateID interface{}, day Weekday) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Reason:  "DUPLICATE_SLOT",
		Message: fmt.Sprintf("template %v already has a slot on %s", templateID, day),
		Err:     ErrDuplicateSlot,
	}
}

func NewStaleStageError(expected, actual ApplicationStageName) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Reason:  "STALE_STAGE",
		Message: fmt.Sprintf("application stage changed: expected %s, found %s", expected, actual),
		Err:     ErrStaleStage,
	}
}

// NewStageGateError reports the first unmet precondition for a stage transition.
func NewStageGateError(condition string) *AppError {
	return &AppError{
		Code:      CodePrecondition,
		Reason:    "STAGE_GATE_NOT_SATISFIED",
		Message:   "stage gate not satisfied: " + condition,
		Condition: condition,
		Err:       ErrStageGateNotSatisfied,
	}
}

func NewInvalidTransitionError(message string) *AppError {
	return &AppError{
		Code:    CodePrecondition,
		Reason:  "INVALID_TRANSITION",
		Message: message,
		Err:     ErrInvalidTransition,
	}
}

// NewReviewNotActiveError rejects decisions on a request that already
// completed or was declined.
func NewReviewNotActiveError(id interface{}, status ReviewStatus) *AppError {
	return &AppError{
		Code:    CodePrecondition,
		Reason:  "REVIEW_NOT_PENDING",
		Message: fmt.Sprintf("review request %v is %s", id, status),
		Err:     ErrReviewRequestNotActive,
	}
}

// ErrorCode returns the AppError code of err, or CodeInternal for foreign errors.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error:     appErr.Message,
			Code:      appErr.Code,
			Reason:    appErr.Reason,
			Condition: appErr.Condition,
		}
		if appErr.Err != nil && appErr.Code == CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
