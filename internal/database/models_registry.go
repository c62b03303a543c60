package database

import "keyhouse/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Application{},
		&models.ApplicationStage{},
		&models.Eligibility{},
		&models.OfferLetter{},
		&models.EscrowInformation{},
		&models.DayAvailability{},
		&models.DayAvailabilitySlot{},
		&models.Inspection{},
		&models.InspectionRescheduleRequest{},
		&models.ReviewRequestTypeStage{},
		&models.ReviewRequest{},
		&models.ReviewRequestStage{},
		&models.ReviewRequestApproval{},
		&models.ConditionPrecedent{},
		&models.LoanDecision{},
		&models.LoanRepayment{},
		&models.PaymentReceipt{},
	}
}
