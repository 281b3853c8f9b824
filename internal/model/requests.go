package model

import "time"

// CreateEventRequest is the payload for creating a new event (DRAFT).
type CreateEventRequest struct {
	Name                 string      `json:"name"`
	Description          string      `json:"description"`
	Type                 EventType   `json:"type"`
	MaxParticipants      *int        `json:"max_participants"`
	RegistrationFee      int64       `json:"registration_fee"`
	RegistrationDeadline *time.Time  `json:"registration_deadline"`
	StartDate            time.Time   `json:"start_date"`
	EndDate              time.Time   `json:"end_date"`
	Eligibility          []string    `json:"eligibility"`
	AllowTeams           bool        `json:"allow_teams"`
	MinTeamSize          int         `json:"min_team_size"`
	MaxTeamSize          int         `json:"max_team_size"`
	Items                []MerchItem `json:"items"`
	FormSchema           JSONMap     `json:"form_schema"`
}

// UpdateEventRequest is the allow-listed edit command. Which fields are
// honored depends on the event's status; nil means "leave unchanged".
type UpdateEventRequest struct {
	Name                 *string     `json:"name"`
	Description          *string     `json:"description"`
	MaxParticipants      *int        `json:"max_participants"`
	RegistrationFee      *int64      `json:"registration_fee"`
	RegistrationDeadline *time.Time  `json:"registration_deadline"`
	StartDate            *time.Time  `json:"start_date"`
	EndDate              *time.Time  `json:"end_date"`
	Eligibility          []string    `json:"eligibility"`
	Items                []MerchItem `json:"items"`
	FormSchema           JSONMap     `json:"form_schema"`
}

// SetStatusRequest advances the event lifecycle.
type SetStatusRequest struct {
	Status EventStatus `json:"status"`
}

// RegisterRequest is the payload for an individual registration.
type RegisterRequest struct {
	FormData JSONMap `json:"form_data"`
}

// OrderRequest is the optional merchandise order attached to a registration.
type OrderRequest struct {
	SKU          string `json:"sku"`
	VariantSize  string `json:"variant_size"`
	VariantColor string `json:"variant_color"`
	Quantity     int    `json:"quantity"`
}

// MerchRegisterRequest is the payload for a merchandise registration.
type MerchRegisterRequest struct {
	FormData JSONMap       `json:"form_data"`
	Order    *OrderRequest `json:"order"`
}

// RejectPaymentRequest carries the organizer's rejection reason.
type RejectPaymentRequest struct {
	Reason string `json:"reason"`
}

// CheckInRequest carries the scanned QR payload.
type CheckInRequest struct {
	QRPayload string `json:"qr_payload"`
}

// CreateTeamRequest is the payload for creating a team.
type CreateTeamRequest struct {
	TeamSize int     `json:"team_size"`
	FormData JSONMap `json:"form_data"`
}

// JoinTeamRequest joins a team by invite code.
type JoinTeamRequest struct {
	InviteCode string `json:"invite_code"`
}

// MarkReadRequest marks the given notifications as read.
type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Notification is an in-app notification row delivered by the notifier sink.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Refs      JSONMap   `json:"refs,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
