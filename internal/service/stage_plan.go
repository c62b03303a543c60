package service

import "keyhouse/internal/models"

// Gate conditions reported in StageGateNotSatisfied errors.
const (
	gateEligibilityEligible = "eligibility_eligible"
	gateOfferAccepted       = "offer_letter_accepted"
	gateInspectionAttended  = "inspection_attended"
	gateEscrowCompleted     = "escrow_completed"
	gatePrecedentCompleted  = "condition_precedent_completed"
	gateLoanApproved        = "loan_decision_approved"
	gateLoanOfferChosen     = "loan_offer_chosen"
)

// stagePlan is the ordered stage list for one application type. Optional
// stages may be skipped when advancing.
type stagePlan struct {
	order    []models.ApplicationStageName
	optional map[models.ApplicationStageName]bool
}

var stagePlans = map[models.ApplicationType]stagePlan{
	models.ApplicationTypeMortgage: {
		order: []models.ApplicationStageName{
			models.StageCreated,
			models.StagePrequalification,
			models.StageEligibilityCheck,
			models.StageOfferLetter,
			models.StageInspection,
			models.StageEscrow,
			models.StageConditionPrecedent,
			models.StageLoanDecision,
			models.StageClosed,
		},
		optional: map[models.ApplicationStageName]bool{
			models.StagePrequalification: true,
			models.StageInspection:       true,
		},
	},
	models.ApplicationTypeOutright: {
		order: []models.ApplicationStageName{
			models.StageCreated,
			models.StageOfferLetter,
			models.StageInspection,
			models.StageEscrow,
			models.StageClosed,
		},
		optional: map[models.ApplicationStageName]bool{
			models.StageInspection: true,
		},
	},
}

func (p stagePlan) index(stage models.ApplicationStageName) int {
	for i, s := range p.order {
		if s == stage {
			return i
		}
	}
	return -1
}

// includes reports whether stage belongs to the plan.
func (p stagePlan) includes(stage models.ApplicationStageName) bool {
	return p.index(stage) >= 0
}

// reachable reports whether to follows from directly, skipping only
// optional stages in between.
func (p stagePlan) reachable(from, to models.ApplicationStageName) bool {
	i, j := p.index(from), p.index(to)
	if i < 0 || j <= i {
		return false
	}
	for k := i + 1; k < j; k++ {
		if !p.optional[p.order[k]] {
			return false
		}
	}
	return true
}

// next lists the stages reachable from the current one.
func (p stagePlan) next(from models.ApplicationStageName) []models.ApplicationStageName {
	var out []models.ApplicationStageName
	for _, s := range p.order {
		if p.reachable(from, s) {
			out = append(out, s)
		}
	}
	return out
}
