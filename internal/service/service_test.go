package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openfest/registrar/internal/auth"
	"github.com/openfest/registrar/internal/model"
	"github.com/openfest/registrar/internal/notify"
	"github.com/openfest/registrar/internal/ticket"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// env wires the services against a shared in-memory store with a frozen
// clock and recording side-effect sinks.
type env struct {
	store         *memStore
	sinks         *recordingSinks
	events        *EventService
	registrations *RegistrationService
	teams         *TeamService
	notifications *NotificationService
}

func newEnv() *env {
	store := newMemStore()
	sinks := &recordingSinks{}
	dispatcher := &notify.Dispatcher{Notifier: sinks, Mailer: sinks, Announcer: sinks}

	regs := NewRegistrationService(store.eventStore(), store.registrationStore(), dispatcher)
	regs.now = func() time.Time { return testNow }
	teams := NewTeamService(store.eventStore(), store.registrationStore(), store.teamStore(), dispatcher)
	teams.now = func() time.Time { return testNow }

	return &env{
		store:         store,
		sinks:         sinks,
		events:        NewEventService(store.eventStore(), dispatcher),
		registrations: regs,
		teams:         teams,
		notifications: NewNotificationService(store.notificationStore()),
	}
}

// seedEvent stores an event directly, bypassing the create/publish flow.
func (e *env) seedEvent(event *model.Event) *model.Event {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OrganizerID == "" {
		event.OrganizerID = "org-1"
	}
	if event.Name == "" {
		event.Name = "Test Event"
	}
	if event.Status == "" {
		event.Status = model.EventPublished
	}
	if event.StartDate.IsZero() {
		event.StartDate = testNow.Add(72 * time.Hour)
	}
	if event.EndDate.IsZero() {
		event.EndDate = event.StartDate.Add(8 * time.Hour)
	}
	if err := e.store.eventStore().Create(context.Background(), event); err != nil {
		panic(err)
	}
	return event
}

func participant(id string) auth.Actor {
	return auth.Actor{ID: id, Role: auth.RoleParticipant}
}

func organizer(id string) auth.Actor {
	return auth.Actor{ID: id, Role: auth.RoleOrganizer}
}

func intPtr(n int) *int { return &n }

func tshirtCatalog(stock int) []model.MerchItem {
	return []model.MerchItem{{
		SKU:                  "TSHIRT",
		Name:                 "Event T-Shirt",
		Price:                1500,
		PurchaseLimitPerUser: 2,
		Variants: []model.Variant{
			{Size: "M", Color: "black", Stock: stock},
			{Size: "L", Color: "black", Stock: 10},
		},
	}}
}

// tshirtOrder orders one size-M black shirt.
func tshirtOrder(qty int) *model.OrderRequest {
	return &model.OrderRequest{SKU: "TSHIRT", VariantSize: "M", VariantColor: "black", Quantity: qty}
}

// forgeQR builds the payload a scanner would produce for a ticket.
func forgeQR(t *testing.T, ticketID, eventID string) string {
	t.Helper()
	return ticket.EncodeQR(ticketID, eventID)
}

func (e *env) stock(eventID, sku, size, color string) int {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	v := e.store.events[eventID].FindItem(sku).FindVariant(size, color)
	return v.Stock
}

// recordingSinks captures dispatched side effects for assertions.
type recordingSinks struct {
	mu            sync.Mutex
	notifications []model.Notification
	emails        []string // ticket ids
	announced     []string // event ids
	fail          bool
}

func (r *recordingSinks) Notify(ctx context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("sink down")
	}
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *recordingSinks) EnqueueTicketEmail(ctx context.Context, reg *model.Registration, eventName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("sink down")
	}
	r.emails = append(r.emails, reg.TicketID)
	return nil
}

func (r *recordingSinks) Announce(ctx context.Context, event *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("sink down")
	}
	r.announced = append(r.announced, event.ID)
	return nil
}

func (r *recordingSinks) kinds(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notifications {
		if n.UserID == userID {
			out = append(out, n.Kind)
		}
	}
	return out
}
