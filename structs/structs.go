package structs

import (
	"time"
)

type Role string

const (
	RoleParticipant Role = "participant"
	RoleOrganizer   Role = "organizer"
	RoleAdmin       Role = "admin"
)

const (
	ParticipantIIIT    = "iiit"
	ParticipantNonIIIT = "non-iiit"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string `json:"userid"`
	Role   Role   `json:"role"`
}

type User struct {
	UserID          string    `json:"userid" bson:"userid"`
	FirstName       string    `json:"first_name" bson:"first_name"`
	LastName        string    `json:"last_name" bson:"last_name"`
	Email           string    `json:"email" bson:"email"`
	Password        string    `json:"-" bson:"password"`
	Role            Role      `json:"role" bson:"role"`
	ParticipantType string    `json:"participant_type,omitempty" bson:"participant_type,omitempty"`
	OrganizerName   string    `json:"organizer_name,omitempty" bson:"organizer_name,omitempty"`
	DiscordWebhook  string    `json:"-" bson:"discord_webhook,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

func (u *User) DisplayName() string {
	if u.OrganizerName != "" {
		return u.OrganizerName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserSummary is the author projection attached to discussion messages.
type UserSummary struct {
	UserID    string `json:"userid" bson:"userid"`
	FirstName string `json:"first_name" bson:"first_name"`
	LastName  string `json:"last_name" bson:"last_name"`
	Role      Role   `json:"role" bson:"role"`
}

type EventStatus string

const (
	StatusDraft     EventStatus = "draft"
	StatusPublished EventStatus = "published"
	StatusOngoing   EventStatus = "ongoing"
	StatusCompleted EventStatus = "completed"
	StatusClosed    EventStatus = "closed"
	StatusCancelled EventStatus = "cancelled"
)

const (
	EventTypeNormal      = "normal"
	EventTypeMerchandise = "merchandise"
)

type Event struct {
	EventID              string              `json:"eventid" bson:"eventid"`
	OrganizerID          string              `json:"organizerid" bson:"organizerid"`
	Title                string              `json:"title" bson:"title"`
	Description          string              `json:"description" bson:"description"`
	StartDate            time.Time           `json:"start_date" bson:"start_date"`
	EndDate              time.Time           `json:"end_date" bson:"end_date"`
	Location             string              `json:"location" bson:"location"`
	Capacity             int                 `json:"capacity" bson:"capacity"`
	RegistrationDeadline time.Time           `json:"registration_deadline" bson:"registration_deadline"`
	Status               EventStatus         `json:"status" bson:"status"`
	EventType            string              `json:"event_type" bson:"event_type"`
	Eligibility          string              `json:"eligibility" bson:"eligibility"`
	RegistrationFee      float64             `json:"registration_fee" bson:"registration_fee"`
	Tags                 []string            `json:"tags" bson:"tags"`
	CustomForm           []FormField         `json:"custom_form" bson:"custom_form"`
	MerchandiseDetails   *MerchandiseDetails `json:"merchandise_details,omitempty" bson:"merchandise_details,omitempty"`
	RegisteredCount      int                 `json:"registered_count" bson:"registered_count"`
	CreatedAt            time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at" bson:"updated_at"`
}

type FormField struct {
	Name     string   `json:"name" bson:"name" validate:"required"`
	Label    string   `json:"label" bson:"label"`
	Type     string   `json:"type" bson:"type" validate:"omitempty,oneof=text textarea number email select checkbox radio date file"`
	Required bool     `json:"required" bson:"required"`
	Options  []string `json:"options,omitempty" bson:"options,omitempty"`
}

type MerchandiseDetails struct {
	Sizes                       []string `json:"sizes,omitempty" bson:"sizes,omitempty"`
	Colors                      []string `json:"colors,omitempty" bson:"colors,omitempty"`
	Variants                    []string `json:"variants,omitempty" bson:"variants,omitempty"`
	StockQuantity               int      `json:"stock_quantity" bson:"stock_quantity" validate:"gte=0"`
	PurchaseLimitPerParticipant int      `json:"purchase_limit_per_participant" bson:"purchase_limit_per_participant" validate:"gte=0"`
}

const (
	PaymentNone     = "none"
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentRejected = "rejected"
)

const (
	AttendanceQRScan         = "qr_scan"
	AttendanceManualOverride = "manual_override"
)

type Registration struct {
	RegistrationID        string                `json:"registrationid" bson:"registrationid"`
	EventID               string                `json:"eventid" bson:"eventid"`
	UserID                string                `json:"userid" bson:"userid"`
	TicketID              string                `json:"ticketid" bson:"ticketid"`
	Attended              bool                  `json:"attended" bson:"attended"`
	AttendedAt            *time.Time            `json:"attended_at,omitempty" bson:"attended_at,omitempty"`
	AttendanceMethod      string                `json:"attendance_method,omitempty" bson:"attendance_method,omitempty"`
	AttendanceAuditLog    []AttendanceAudit     `json:"attendance_audit_log,omitempty" bson:"attendance_audit_log,omitempty"`
	CustomFormResponses   map[string]any        `json:"custom_form_responses,omitempty" bson:"custom_form_responses,omitempty"`
	PaymentStatus         string                `json:"payment_status" bson:"payment_status"`
	PaymentProof          string                `json:"payment_proof,omitempty" bson:"payment_proof,omitempty"`
	RejectionReason       string                `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	MerchandiseSelections *MerchandiseSelection `json:"merchandise_selections,omitempty" bson:"merchandise_selections,omitempty"`
	CreatedAt             time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at" bson:"updated_at"`
}

type AttendanceAudit struct {
	Action      string    `json:"action" bson:"action"`
	PerformedBy string    `json:"performed_by" bson:"performed_by"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	Reason      string    `json:"reason,omitempty" bson:"reason,omitempty"`
}

type MerchandiseSelection struct {
	Size     string `json:"size,omitempty" bson:"size,omitempty"`
	Color    string `json:"color,omitempty" bson:"color,omitempty"`
	Variant  string `json:"variant,omitempty" bson:"variant,omitempty"`
	Quantity int    `json:"quantity,omitempty" bson:"quantity,omitempty"`
}

type Reaction struct {
	Emoji  string `json:"emoji" bson:"emoji"`
	UserID string `json:"userid" bson:"userid"`
}

type DiscussionMessage struct {
	MessageID      string       `json:"messageid" bson:"messageid"`
	EventID        string       `json:"eventid" bson:"eventid"`
	AuthorID       string       `json:"authorid" bson:"authorid"`
	Author         *UserSummary `json:"author,omitempty" bson:"-"`
	Content        string       `json:"content" bson:"content"`
	ParentMessage  string       `json:"parent_message,omitempty" bson:"parent_message,omitempty"`
	IsPinned       bool         `json:"is_pinned" bson:"is_pinned"`
	IsAnnouncement bool         `json:"is_announcement" bson:"is_announcement"`
	Reactions      []Reaction   `json:"reactions" bson:"reactions"`
	IsDeleted      bool         `json:"is_deleted" bson:"is_deleted"`
	DeletedBy      string       `json:"deleted_by,omitempty" bson:"deleted_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" bson:"updated_at"`

	Replies []*DiscussionMessage `json:"replies" bson:"-"`
}

type Feedback struct {
	FeedbackID string    `json:"feedbackid" bson:"feedbackid"`
	EventID    string    `json:"eventid" bson:"eventid"`
	UserID     string    `json:"userid" bson:"userid"`
	Rating     int       `json:"rating" bson:"rating"`
	Comment    string    `json:"comment" bson:"comment"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

type FeedbackStats struct {
	TotalCount    int         `json:"totalCount"`
	AverageRating float64     `json:"averageRating"`
	Distribution  map[int]int `json:"distribution"`
}
