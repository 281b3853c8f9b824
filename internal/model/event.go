// Package model defines the core domain types for the registration engine.
package model

import "time"

// EventType distinguishes plain events from merchandise-selling ones.
type EventType string

const (
	EventNormal EventType = "NORMAL"
	EventMerch  EventType = "MERCH"
)

// EventStatus is the event lifecycle state.
type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventOngoing   EventStatus = "ONGOING"
	EventClosed    EventStatus = "CLOSED"
	EventCompleted EventStatus = "COMPLETED"
	EventCancelled EventStatus = "CANCELLED"
)

// Terminal reports whether no further status transition is allowed.
func (s EventStatus) Terminal() bool {
	return s == EventCompleted || s == EventCancelled
}

// nextEventStatus is the forward lifecycle chain. CANCELLED is reachable
// from any non-terminal state and is handled separately.
var nextEventStatus = map[EventStatus]EventStatus{
	EventDraft:     EventPublished,
	EventPublished: EventOngoing,
	EventOngoing:   EventClosed,
	EventClosed:    EventCompleted,
}

// CanTransition reports whether status may move from s to to.
func (s EventStatus) CanTransition(to EventStatus) bool {
	if s.Terminal() {
		return false
	}
	if to == EventCancelled {
		return true
	}
	return nextEventStatus[s] == to
}

// Variant is one purchasable size/color combination of a merchandise item.
type Variant struct {
	Size  string `json:"size"`
	Color string `json:"color"`
	Stock int    `json:"stock"`
}

// MerchItem is a merchandise SKU sold alongside an event.
type MerchItem struct {
	SKU                  string    `json:"sku"`
	Name                 string    `json:"name"`
	Price                int64     `json:"price"` // smallest currency unit
	PurchaseLimitPerUser int       `json:"purchase_limit_per_user"`
	Variants             []Variant `json:"variants"`
}

// FindVariant returns the variant matching size and color, or nil.
func (m *MerchItem) FindVariant(size, color string) *Variant {
	for i := range m.Variants {
		if m.Variants[i].Size == size && m.Variants[i].Color == color {
			return &m.Variants[i]
		}
	}
	return nil
}

// Event is a registrable event owned by an organizer.
type Event struct {
	ID          string      `json:"id"`
	OrganizerID string      `json:"organizer_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        EventType   `json:"type"`
	Status      EventStatus `json:"status"`

	// MaxParticipants bounds non-cancelled registrations; nil means unlimited.
	MaxParticipants      *int       `json:"max_participants"`
	RegistrationFee      int64      `json:"registration_fee"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	StartDate            time.Time  `json:"start_date"`
	EndDate              time.Time  `json:"end_date"`

	// Eligibility holds participant-type tags; empty means open to all.
	Eligibility []string `json:"eligibility"`

	AllowTeams  bool `json:"allow_teams"`
	MinTeamSize int  `json:"min_team_size"`
	MaxTeamSize int  `json:"max_team_size"`

	Items []MerchItem `json:"items,omitempty"`

	// FormLocked becomes permanently true after the first registration.
	FormLocked bool      `json:"form_locked"`
	FormSchema JSONMap   `json:"form_schema,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FindItem returns the merchandise item with the given SKU, or nil.
func (e *Event) FindItem(sku string) *MerchItem {
	for i := range e.Items {
		if e.Items[i].SKU == sku {
			return &e.Items[i]
		}
	}
	return nil
}

// Deadline returns the effective registration cutoff: the explicit
// registration deadline when set, otherwise the event start date.
func (e *Event) Deadline() time.Time {
	if e.RegistrationDeadline != nil {
		return *e.RegistrationDeadline
	}
	return e.StartDate
}

// OpenToAll reports whether the event has no eligibility restriction.
func (e *Event) OpenToAll() bool { return len(e.Eligibility) == 0 }

// EligibleFor reports whether any of the participant's tags matches the
// event's eligibility set.
func (e *Event) EligibleFor(tags []string) bool {
	if e.OpenToAll() {
		return true
	}
	for _, want := range e.Eligibility {
		for _, got := range tags {
			if want == got {
				return true
			}
		}
	}
	return false
}

// JSONMap is an arbitrary JSON object column (form schemas and responses).
type JSONMap map[string]any
