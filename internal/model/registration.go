package model

import "time"

// RegistrationType mirrors the event type the registration was made under.
type RegistrationType string

const (
	RegistrationNormal RegistrationType = "NORMAL"
	RegistrationMerch  RegistrationType = "MERCH"
)

// RegistrationStatus is the registration lifecycle state.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "PENDING"
	RegistrationConfirmed RegistrationStatus = "CONFIRMED"
	RegistrationRejected  RegistrationStatus = "REJECTED"
	RegistrationCancelled RegistrationStatus = "CANCELLED"
)

// Active reports whether the registration still occupies a seat.
func (s RegistrationStatus) Active() bool {
	return s == RegistrationPending || s == RegistrationConfirmed
}

// PaymentStatus is the manual-approval state of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentApproved PaymentStatus = "APPROVED"
	PaymentRejected PaymentStatus = "REJECTED"
)

// FeeSKU is the pseudo-SKU used for registration-fee-only orders.
const FeeSKU = "REGISTRATION_FEE"

// Order is the payment obligation embedded in a registration. Stock for a
// merchandise SKU is decremented only when the order is approved, never at
// placement.
type Order struct {
	SKU             string        `json:"sku"`
	VariantSize     string        `json:"variant_size,omitempty"`
	VariantColor    string        `json:"variant_color,omitempty"`
	Quantity        int           `json:"quantity"`
	Price           int64         `json:"price"`
	AmountPaid      int64         `json:"amount_paid"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentProof    string        `json:"payment_proof,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
}

// IsMerch reports whether the order targets a real merchandise SKU rather
// than the registration fee.
func (o *Order) IsMerch() bool { return o.SKU != "" && o.SKU != FeeSKU }

// Registration is one participant's registration to one event. At most one
// row exists per (event, participant) pair; ticket ids are globally unique.
type Registration struct {
	ID            string             `json:"id"`
	EventID       string             `json:"event_id"`
	ParticipantID string             `json:"participant_id"`
	TeamID        string             `json:"team_id,omitempty"`
	Type          RegistrationType   `json:"type"`
	Status        RegistrationStatus `json:"status"`

	// TicketID is generated once at creation and never changes; QRPayload is
	// populated only once the registration is CONFIRMED.
	TicketID  string `json:"ticket_id"`
	QRPayload string `json:"qr_payload,omitempty"`

	Order *Order `json:"order,omitempty"`

	FormData   JSONMap    `json:"form_data,omitempty"`
	Attended   bool       `json:"attended"`
	AttendedAt *time.Time `json:"attended_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
