package events

import (
	"slices"

	"campusevents/apperr"
	"campusevents/structs"
)

var transitions = map[structs.EventStatus][]structs.EventStatus{
	structs.StatusDraft:     {structs.StatusPublished},
	structs.StatusPublished: {structs.StatusDraft, structs.StatusOngoing, structs.StatusClosed},
	structs.StatusOngoing:   {structs.StatusCompleted, structs.StatusClosed},
	structs.StatusCompleted: nil,
	structs.StatusClosed:    nil,
	structs.StatusCancelled: nil,
}

func IsKnownStatus(s structs.EventStatus) bool {
	_, ok := transitions[s]
	return ok
}

func CanTransition(from, to structs.EventStatus) bool {
	return slices.Contains(transitions[from], to)
}

// NextStatus resolves a status change request. An empty request toggles
// between draft and published.
func NextStatus(current structs.EventStatus, requested string) (structs.EventStatus, error) {
	if current == structs.StatusCancelled {
		return "", apperr.Validationf("Event is cancelled and its status can no longer change")
	}

	target := structs.EventStatus(requested)
	if requested == "" {
		switch current {
		case structs.StatusDraft:
			target = structs.StatusPublished
		case structs.StatusPublished:
			target = structs.StatusDraft
		default:
			return "", apperr.Validationf("newStatus is required when the event is %s", current)
		}
	}

	if !IsKnownStatus(target) || target == structs.StatusCancelled {
		return "", apperr.Validationf("Invalid status %q", requested)
	}
	if !CanTransition(current, target) {
		return "", apperr.Validationf("Cannot change status from %s to %s", current, target)
	}
	return target, nil
}

// CheckCancel reports whether an event in status s may be cancelled.
func CheckCancel(s structs.EventStatus) error {
	if s == structs.StatusCancelled {
		return apperr.Validationf("Event is already cancelled")
	}
	return nil
}
