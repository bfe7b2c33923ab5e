package events

import (
	"fmt"
	"strings"

	"campusevents/structs"
)

// Eligible matches the free-text eligibility filter against a participant type.
// "non-iiit" restricts to non-IIIT participants, "iiit" without "non" restricts
// to IIIT participants, anything else is open.
func Eligible(filter, participantType string) bool {
	f := strings.ToLower(filter)
	switch {
	case strings.Contains(f, "non-iiit"):
		return participantType == structs.ParticipantNonIIIT
	case strings.Contains(f, "iiit") && !strings.Contains(f, "non"):
		return participantType == structs.ParticipantIIIT
	}
	return true
}

// MissingRequired returns the labels of required form fields with no answer.
func MissingRequired(form []structs.FormField, responses map[string]any) []string {
	var missing []string
	for _, f := range form {
		if !f.Required {
			continue
		}
		if isEmpty(responses[f.Name]) {
			label := f.Label
			if label == "" {
				label = f.Name
			}
			missing = append(missing, label)
		}
	}
	return missing
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case bool:
		return false
	}
	return strings.TrimSpace(fmt.Sprint(v)) == ""
}

// PurchaseLimit returns the per-participant limit, defaulting to one.
func PurchaseLimit(ev *structs.Event) int {
	if ev.MerchandiseDetails == nil || ev.MerchandiseDetails.PurchaseLimitPerParticipant <= 0 {
		return 1
	}
	return ev.MerchandiseDetails.PurchaseLimitPerParticipant
}

// Visible reports whether participants may see ev in listings.
func Visible(ev *structs.Event) bool {
	switch ev.Status {
	case structs.StatusPublished, structs.StatusOngoing, structs.StatusCompleted, structs.StatusClosed:
		return true
	}
	return false
}
