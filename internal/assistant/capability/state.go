package capability

import (
	"encoding/json"

	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
)

// The accessors below switch the conversation to the product and return its
// collected data, creating it on first use.

func (t *Turn) autoData() *sessiondomain.AutoCollected {
	s := t.State
	s.SelectProduct(sessiondomain.ProductAuto)
	if s.Collected == nil || s.Collected.Auto == nil {
		s.Collected = sessiondomain.CollectedAuto(sessiondomain.AutoCollected{})
	}
	return s.Collected.Auto
}

func (t *Turn) travelData() *sessiondomain.TravelCollected {
	s := t.State
	s.SelectProduct(sessiondomain.ProductTravel)
	if s.Collected == nil || s.Collected.Travel == nil {
		s.Collected = sessiondomain.CollectedTravel(sessiondomain.TravelCollected{})
	}
	return s.Collected.Travel
}

func (t *Turn) accidentData() *sessiondomain.AccidentCollected {
	s := t.State
	s.SelectProduct(sessiondomain.ProductAccident)
	if s.Collected == nil || s.Collected.Accident == nil {
		s.Collected = sessiondomain.CollectedAccident(sessiondomain.AccidentCollected{})
	}
	return s.Collected.Accident
}

func (t *Turn) homeData() *sessiondomain.HomeCollected {
	s := t.State
	s.SelectProduct(sessiondomain.ProductHome)
	if s.Collected == nil || s.Collected.Home == nil {
		s.Collected = sessiondomain.CollectedHome(sessiondomain.HomeCollected{})
	}
	return s.Collected.Home
}

// quoted records the quote shown to the client and moves the session on.
func (t *Turn) quoted(product sessiondomain.Product, premium int64, term string, details any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	t.State.LastQuote = &sessiondomain.QuoteSnapshot{
		Product: product,
		Premium: premium,
		Term:    term,
		Details: raw,
		At:      t.box.clock.Now(),
	}
	if t.State.Step == sessiondomain.StepStart || t.State.Step == sessiondomain.StepDraft {
		t.State.Step = sessiondomain.StepQuoted
	}
	return nil
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
