package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Service interface {
	QuoteAuto(ctx context.Context, req AutoRequest) (AutoQuote, error)
	QuoteTravel(ctx context.Context, req TravelRequest) (TravelQuote, error)
	// QuoteAccident returns the catalog, narrowed to one status when status is set.
	QuoteAccident(ctx context.Context, status string) (AccidentQuote, error)
	// QuoteHome returns every tier, with Tier set when tier names one.
	QuoteHome(ctx context.Context, tier string) (HomeQuote, error)
	TravelCatalog() TravelCatalog
	Version() string
}

var (
	ErrInvalidInput     = errors.New("invalid_tariff_input")
	ErrNoMatchingTariff = errors.New("no_matching_tariff")
	ErrAmbiguousTariff  = errors.New("ambiguous_tariff")
	ErrUnknownStatus    = errors.New("unknown_professional_status")
	ErrUnknownTier      = errors.New("unknown_home_tier")
	ErrInconsistentUse  = errors.New("inconsistent_usage")
)

// ValidationError names the rejected field and the values accepted for it.
type ValidationError struct {
	Field   string
	Value   string
	Allowed []string
	cause   error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s %q", e.Field, e.Value)
	if len(e.Allowed) > 0 {
		msg += " (allowed: " + strings.Join(e.Allowed, ", ") + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrInvalidInput, e.cause}
	}
	return []error{ErrInvalidInput}
}

func invalid(field, value string, allowed []string, cause error) error {
	return &ValidationError{Field: field, Value: value, Allowed: allowed, cause: cause}
}

// Invalid builds a validation error for field.
func Invalid(field, value string, allowed ...string) error {
	return invalid(field, value, allowed, nil)
}

// InvalidWith builds a validation error that also matches cause.
func InvalidWith(cause error, field, value string, allowed ...string) error {
	return invalid(field, value, allowed, cause)
}
