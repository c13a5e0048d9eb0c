package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
)

var externalStatuses = map[string]subscriptiondomain.Status{
	"success":    subscriptiondomain.StatusValid,
	"succeeded":  subscriptiondomain.StatusValid,
	"completed":  subscriptiondomain.StatusValid,
	"failed":     subscriptiondomain.StatusCancelled,
	"cancelled":  subscriptiondomain.StatusCancelled,
	"canceled":   subscriptiondomain.StatusCancelled,
	"pending":    subscriptiondomain.StatusPending,
	"processing": subscriptiondomain.StatusInProgress,
	"unknown":    subscriptiondomain.StatusPending,
}

// MapExternalStatus maps a gateway status to a persisted status. Anything
// unrecognized is treated as pending.
func MapExternalStatus(raw string) subscriptiondomain.Status {
	if status, ok := externalStatuses[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return subscriptiondomain.StatusPending
}

// InferProvider uses the explicit provider field when present, then looks
// for operator names anywhere in the payload.
func InferProvider(hint string, payload []byte) string {
	switch p := strings.ToLower(strings.TrimSpace(hint)); p {
	case ProviderMoMo, ProviderAirtel:
		return p
	case "mtn":
		return ProviderMoMo
	}

	var body struct {
		Provider string `json:"provider"`
	}
	if json.Unmarshal(payload, &body) == nil && body.Provider != "" {
		if p := InferProvider(body.Provider, nil); p != ProviderUnknown {
			return p
		}
	}

	lowered := bytes.ToLower(payload)
	switch {
	case bytes.Contains(lowered, []byte("momo")), bytes.Contains(lowered, []byte("mtn")):
		return ProviderMoMo
	case bytes.Contains(lowered, []byte("airtel")):
		return ProviderAirtel
	}
	return ProviderUnknown
}

// NewReference builds "{prefix}-{YYYYmmddHHMMSS}-{first 8 chars of the
// subscription id}-{attempt in base 36}". The attempt is the transaction id,
// so two settlements started in the same second never share a reference.
func NewReference(method Method, at time.Time, subscriptionID string, attempt snowflake.ID) string {
	sid := strings.TrimSpace(subscriptionID)
	if len(sid) > 8 {
		sid = sid[:8]
	}
	return fmt.Sprintf("%s-%s-%s-%s", method.ReferencePrefix(), at.Format("20060102150405"), sid, strings.ToUpper(attempt.Base36()))
}
