package events

import (
	"strings"
	"time"

	"campusevents/apperr"
	"campusevents/structs"

	"go.mongodb.org/mongo-driver/bson"
)

// Patch carries the fields of an edit request. Nil means "not supplied".
type Patch struct {
	Title                *string                     `json:"title"`
	Description          *string                     `json:"description"`
	StartDate            *time.Time                  `json:"start_date"`
	EndDate              *time.Time                  `json:"end_date"`
	Location             *string                     `json:"location"`
	Capacity             *int                        `json:"capacity"`
	RegistrationDeadline *time.Time                  `json:"registration_deadline"`
	EventType            *string                     `json:"event_type"`
	Eligibility          *string                     `json:"eligibility"`
	RegistrationFee      *float64                    `json:"registration_fee"`
	Tags                 *[]string                   `json:"tags"`
	CustomForm           *[]structs.FormField        `json:"custom_form"`
	MerchandiseDetails   *structs.MerchandiseDetails `json:"merchandise_details"`
}

// fields lists the supplied fields in a stable order, keyed by their stored name.
func (p Patch) fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.Title != nil, "title")
	add(p.Description != nil, "description")
	add(p.StartDate != nil, "start_date")
	add(p.EndDate != nil, "end_date")
	add(p.Location != nil, "location")
	add(p.Capacity != nil, "capacity")
	add(p.RegistrationDeadline != nil, "registration_deadline")
	add(p.EventType != nil, "event_type")
	add(p.Eligibility != nil, "eligibility")
	add(p.RegistrationFee != nil, "registration_fee")
	add(p.Tags != nil, "tags")
	add(p.CustomForm != nil, "custom_form")
	add(p.MerchandiseDetails != nil, "merchandise_details")
	return out
}

var publishedEditable = map[string]bool{
	"description":           true,
	"registration_deadline": true,
	"capacity":              true,
}

// UpdateFields checks p against the edit policy for ev's status and returns
// the $set document. registrations is the current number of registrations.
func UpdateFields(ev *structs.Event, p Patch, registrations int64) (bson.M, error) {
	names := p.fields()
	if len(names) == 0 {
		return nil, apperr.Validationf("No fields to update")
	}

	switch ev.Status {
	case structs.StatusDraft:
		if registrations > 0 {
			if p.CustomForm != nil {
				return nil, apperr.Validationf("Field %q cannot be changed once registrations exist", "custom_form")
			}
			if p.MerchandiseDetails != nil {
				return nil, apperr.Validationf("Field %q cannot be changed once registrations exist", "merchandise_details")
			}
		}
	case structs.StatusPublished:
		for _, name := range names {
			if !publishedEditable[name] {
				return nil, apperr.Validationf("Field %q cannot be edited while the event is published", name)
			}
		}
		if p.Capacity != nil && *p.Capacity < ev.Capacity {
			return nil, apperr.Validationf("Field %q can only be increased while the event is published", "capacity")
		}
	default:
		return nil, apperr.Validationf("Event is %s and can no longer be edited", ev.Status)
	}

	next := *ev
	apply(&next, p)
	if err := Validate(&next); err != nil {
		return nil, err
	}

	set := bson.M{}
	for _, name := range names {
		set[name] = fieldValue(&next, name)
	}
	return set, nil
}

func apply(ev *structs.Event, p Patch) {
	if p.Title != nil {
		ev.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.StartDate != nil {
		ev.StartDate = p.StartDate.UTC()
	}
	if p.EndDate != nil {
		ev.EndDate = p.EndDate.UTC()
	}
	if p.Location != nil {
		ev.Location = *p.Location
	}
	if p.Capacity != nil {
		ev.Capacity = *p.Capacity
	}
	if p.RegistrationDeadline != nil {
		ev.RegistrationDeadline = p.RegistrationDeadline.UTC()
	}
	if p.EventType != nil {
		ev.EventType = *p.EventType
	}
	if p.Eligibility != nil {
		ev.Eligibility = *p.Eligibility
	}
	if p.RegistrationFee != nil {
		ev.RegistrationFee = *p.RegistrationFee
	}
	if p.Tags != nil {
		ev.Tags = *p.Tags
	}
	if p.CustomForm != nil {
		ev.CustomForm = *p.CustomForm
	}
	if p.MerchandiseDetails != nil {
		md := *p.MerchandiseDetails
		ev.MerchandiseDetails = &md
	}
}

func fieldValue(ev *structs.Event, name string) any {
	switch name {
	case "title":
		return ev.Title
	case "description":
		return ev.Description
	case "start_date":
		return ev.StartDate
	case "end_date":
		return ev.EndDate
	case "location":
		return ev.Location
	case "capacity":
		return ev.Capacity
	case "registration_deadline":
		return ev.RegistrationDeadline
	case "event_type":
		return ev.EventType
	case "eligibility":
		return ev.Eligibility
	case "registration_fee":
		return ev.RegistrationFee
	case "tags":
		return ev.Tags
	case "custom_form":
		return ev.CustomForm
	case "merchandise_details":
		return ev.MerchandiseDetails
	}
	return nil
}

// Validate checks the invariants every stored event must satisfy.
func Validate(ev *structs.Event) error {
	if strings.TrimSpace(ev.Title) == "" {
		return apperr.Validationf("Field %q is required", "title")
	}
	if ev.Capacity <= 0 {
		return apperr.Validationf("Field %q must be a positive integer", "capacity")
	}
	if ev.RegistrationFee < 0 {
		return apperr.Validationf("Field %q cannot be negative", "registration_fee")
	}
	if !ev.StartDate.IsZero() && !ev.EndDate.IsZero() && ev.EndDate.Before(ev.StartDate) {
		return apperr.Validationf("Field %q must not be before start_date", "end_date")
	}
	switch ev.EventType {
	case structs.EventTypeNormal:
	case structs.EventTypeMerchandise:
		if ev.MerchandiseDetails == nil {
			return apperr.Validationf("Field %q is required for merchandise events", "merchandise_details")
		}
		if ev.MerchandiseDetails.StockQuantity < 0 {
			return apperr.Validationf("Field %q cannot be negative", "merchandise_details.stock_quantity")
		}
	default:
		return apperr.Validationf("Field %q must be normal or merchandise", "event_type")
	}
	seen := make(map[string]bool, len(ev.CustomForm))
	for _, f := range ev.CustomForm {
		if f.Name == "" {
			return apperr.Validationf("Custom form fields need a name")
		}
		if seen[f.Name] {
			return apperr.Validationf("Custom form field %q is duplicated", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}
