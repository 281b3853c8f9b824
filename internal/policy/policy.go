// Package policy holds the pure registration-admission checks shared by the
// individual and team flows. Nothing here touches storage or the clock; the
// caller supplies the event, the actor's tags, and the current time.
package policy

import (
	"time"

	"github.com/openfest/registrar/internal/apperr"
	"github.com/openfest/registrar/internal/model"
)

// CanRegister reports whether a participant with the given eligibility tags
// may register for the event at time now. asTeam selects the team flow; an
// event that allows teams only accepts individual registrations when it
// also permits them, and vice versa.
func CanRegister(event *model.Event, tags []string, now time.Time, asTeam bool) error {
	if event.Status != model.EventPublished {
		return apperr.InvalidStatef("event is not open for registration")
	}
	if !now.Before(event.Deadline()) {
		return apperr.InvalidStatef("registration deadline has passed")
	}
	if !event.EligibleFor(tags) {
		return apperr.Forbiddenf("you are not eligible for this event")
	}
	if asTeam && !event.AllowTeams {
		return apperr.Validationf("event does not allow team registration")
	}
	if !asTeam && event.AllowTeams {
		return apperr.Validationf("event accepts team registrations only")
	}
	return nil
}

// ValidateTeamSize checks a requested team size against the event's bounds.
func ValidateTeamSize(event *model.Event, size int) error {
	if size < event.MinTeamSize || size > event.MaxTeamSize {
		return apperr.Validationf("team size must be between %d and %d",
			event.MinTeamSize, event.MaxTeamSize)
	}
	return nil
}

// ValidateOrder checks a merchandise order against the event's catalog and
// per-user purchase limit. It returns the resolved item so the caller can
// price the order. Stock is deliberately not checked beyond a soft bound:
// the hard decrement happens at payment approval.
func ValidateOrder(event *model.Event, req *model.OrderRequest) (*model.MerchItem, error) {
	if req.Quantity <= 0 {
		return nil, apperr.Validationf("order quantity must be positive")
	}
	item := event.FindItem(req.SKU)
	if item == nil {
		return nil, apperr.Validationf("unknown sku %q", req.SKU)
	}
	variant := item.FindVariant(req.VariantSize, req.VariantColor)
	if variant == nil {
		return nil, apperr.Validationf("unknown variant %s/%s for sku %q",
			req.VariantSize, req.VariantColor, req.SKU)
	}
	if req.Quantity > variant.Stock {
		return nil, apperr.ErrInsufficientStock
	}
	if item.PurchaseLimitPerUser > 0 && req.Quantity > item.PurchaseLimitPerUser {
		return nil, apperr.Validationf("quantity exceeds purchase limit of %d per user",
			item.PurchaseLimitPerUser)
	}
	return item, nil
}
