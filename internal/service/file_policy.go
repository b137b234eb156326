package service

import (
	"github.com/noah-isme/docflow-api/internal/models"
	appErrors "github.com/noah-isme/docflow-api/pkg/errors"
)

// Transition names an operation on a file.
type Transition string

const (
	TransitionApprove Transition = "approve"
	TransitionReject  Transition = "reject"
	TransitionForward Transition = "forward"
	TransitionReview  Transition = "review"
	TransitionDelete  Transition = "delete"
)

type officerScope func(file *models.File) []models.Department

func originScope(file *models.File) []models.Department {
	return []models.Department{file.Department}
}

func forwardScope(file *models.File) []models.Department {
	return []models.Department{file.ForwardedDepartment()}
}

func involvedScope(file *models.File) []models.Department {
	return []models.Department{file.Department, file.ForwardedDepartment()}
}

type transitionRule struct {
	// from is nil when any status is accepted.
	from            []models.FileStatus
	officers        officerScope
	uploader        bool
	remarksRequired bool
}

var transitionRules = map[Transition]transitionRule{
	TransitionApprove: {
		from:     []models.FileStatus{models.FileStatusSubmitted, models.FileStatusReviewed},
		officers: originScope,
	},
	TransitionReject: {
		from:            []models.FileStatus{models.FileStatusSubmitted, models.FileStatusReviewed},
		officers:        originScope,
		remarksRequired: true,
	},
	TransitionForward: {
		from:     []models.FileStatus{models.FileStatusSubmitted, models.FileStatusReviewed},
		officers: originScope,
	},
	TransitionReview: {
		from:            []models.FileStatus{models.FileStatusForwarded},
		officers:        forwardScope,
		remarksRequired: true,
	},
	TransitionDelete: {
		officers: involvedScope,
		uploader: true,
	},
}

// authorizeTransition checks the actor may run t on file in its current
// state. Authorization is decided before the state precondition.
func authorizeTransition(actor models.Actor, file *models.File, t Transition, remarks string) error {
	rule, ok := transitionRules[t]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown transition")
	}
	if !rule.allows(actor, file) {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to "+string(t)+" this file")
	}
	if rule.from != nil && !statusIn(file.Status, rule.from) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "cannot "+string(t)+" a "+string(file.Status)+" file")
	}
	if rule.remarksRequired && remarks == "" {
		return appErrors.Clone(appErrors.ErrValidation, "remarks are required to "+string(t)+" a file")
	}
	return nil
}

func (r transitionRule) allows(actor models.Actor, file *models.File) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleProgramOfficer:
		if actor.Department == "" || r.officers == nil {
			return false
		}
		for _, d := range r.officers(file) {
			if d == actor.Department {
				return true
			}
		}
	}
	return r.uploader && actor.ID != "" && actor.ID == file.UploadedBy
}

func statusIn(status models.FileStatus, allowed []models.FileStatus) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}
