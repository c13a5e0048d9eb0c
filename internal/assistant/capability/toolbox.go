// Package capability exposes the insurance operations the dialogue model may
// call during a turn. Every argument is decoded and validated here; the
// results update the conversation state.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/covera/internal/clock"
	customerdomain "github.com/smallbiznis/covera/internal/customer/domain"
	documentdomain "github.com/smallbiznis/covera/internal/document/domain"
	"github.com/smallbiznis/covera/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/covera/internal/payment/domain"
	promodomain "github.com/smallbiznis/covera/internal/promocode/domain"
	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
	tariffdomain "github.com/smallbiznis/covera/internal/tariff/domain"
	"github.com/smallbiznis/covera/internal/vision"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

var (
	ErrInvalidArgument        = errors.New("invalid_argument")
	ErrUnknownCapability      = errors.New("unknown_capability")
	ErrQuoteRequired          = errors.New("quotation_required")
	ErrPremiumMismatch        = errors.New("premium_mismatch")
	ErrSubscriptionInProgress = errors.New("subscription_in_progress")
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Tariffs       tariffdomain.Service
	Customers     customerdomain.Service
	Subscriptions subscriptiondomain.Service
	Payments      paymentdomain.Service
	Documents     documentdomain.Service
	Promos        promodomain.Service
	Vision        vision.Extractor
	Metrics       *metrics.Metrics `optional:"true"`
}

type handler func(ctx context.Context, t *Turn, args Args) (map[string]any, error)

type capability struct {
	decl   *genai.FunctionDeclaration
	handle handler
}

type Toolbox struct {
	log           *zap.Logger
	clock         clock.Clock
	tariffs       tariffdomain.Service
	customers     customerdomain.Service
	subscriptions subscriptiondomain.Service
	payments      paymentdomain.Service
	documents     documentdomain.Service
	promos        promodomain.Service
	vision        vision.Extractor
	metrics       *metrics.Metrics

	caps  map[string]capability
	decls []*genai.FunctionDeclaration
}

func New(p Params) *Toolbox {
	t := &Toolbox{
		log:           p.Log.Named("assistant.capability"),
		clock:         p.Clock,
		tariffs:       p.Tariffs,
		customers:     p.Customers,
		subscriptions: p.Subscriptions,
		payments:      p.Payments,
		documents:     p.Documents,
		promos:        p.Promos,
		vision:        p.Vision,
		metrics:       p.Metrics,
		caps:          make(map[string]capability),
	}
	t.registerVision()
	t.registerQuotes()
	t.registerLifecycle()
	t.registerPayments()
	return t
}

func (t *Toolbox) register(name, description string, params *genai.Schema, h handler) {
	decl := &genai.FunctionDeclaration{Name: name, Description: description, Parameters: params}
	t.caps[name] = capability{decl: decl, handle: h}
	t.decls = append(t.decls, decl)
}

// Names lists the registered capabilities in alphabetical order.
func (t *Toolbox) Names() []string {
	names := make([]string, 0, len(t.caps))
	for name := range t.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bind returns the capabilities acting on state for one turn. mediaURL is the
// image attached to the current message, if any.
func (t *Toolbox) Bind(state *sessiondomain.ConversationState, mediaURL string) *Turn {
	return &Turn{box: t, State: state, MediaURL: strings.TrimSpace(mediaURL)}
}

// Turn is not safe for concurrent use; capability calls of a turn run in sequence.
type Turn struct {
	box      *Toolbox
	State    *sessiondomain.ConversationState
	MediaURL string
}

func (t *Turn) Declarations() []*genai.FunctionDeclaration {
	return t.box.decls
}

// Call runs one capability and always returns a result the model can read.
func (t *Turn) Call(ctx context.Context, name string, args map[string]any) map[string]any {
	c, ok := t.box.caps[name]
	if !ok {
		t.box.metrics.RecordCapabilityError(ctx, "unknown", ErrUnknownCapability.Error())
		return failure(nil, fmt.Errorf("%w: %q", ErrUnknownCapability, name))
	}

	result, err := c.handle(ctx, t, Args(args))
	if err != nil {
		code := errorCode(err)
		t.box.metrics.RecordCapabilityError(ctx, name, code)
		t.box.log.Warn("capability failed",
			zap.String("capability", name),
			zap.String("session_id", t.State.SessionID),
			zap.String("reason", code),
			zap.Error(err),
		)
		return failure(result, err)
	}
	if result == nil {
		result = map[string]any{}
	}
	if _, ok := result["success"]; !ok {
		result["success"] = true
	}
	t.box.log.Debug("capability completed",
		zap.String("capability", name),
		zap.String("session_id", t.State.SessionID),
	)
	return result
}

func failure(partial map[string]any, err error) map[string]any {
	out := map[string]any{}
	for k, v := range partial {
		out[k] = v
	}
	out["success"] = false
	out["error"] = errorCode(err)
	if _, ok := out["message"]; !ok {
		out["message"] = err.Error()
	}
	return out
}

// errorCode returns the snake_case sentinel at the head of err.
func errorCode(err error) string {
	var verr *tariffdomain.ValidationError
	if errors.As(err, &verr) {
		return tariffdomain.ErrInvalidInput.Error()
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, ':'); i > 0 {
		msg = msg[:i]
	}
	if strings.ContainsAny(msg, " \"'") {
		return "internal_error"
	}
	return msg
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Turn) subscriptionID(args Args) (string, error) {
	if id, ok := args.OptString("souscription_id"); ok {
		return id, nil
	}
	if t.State.SubscriptionID != 0 {
		return t.State.SubscriptionID.String(), nil
	}
	return "", fmt.Errorf("%w: souscription_id is required, call create_souscription first", ErrInvalidArgument)
}

func parseSubscriptionID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", subscriptiondomain.ErrInvalidSubscriptionID, raw)
	}
	return id, nil
}

func sessionProduct(p subscriptiondomain.ProductType) sessiondomain.Product {
	switch p {
	case subscriptiondomain.ProductAuto:
		return sessiondomain.ProductAuto
	case subscriptiondomain.ProductTravel:
		return sessiondomain.ProductTravel
	case subscriptiondomain.ProductAccident:
		return sessiondomain.ProductAccident
	case subscriptiondomain.ProductHome:
		return sessiondomain.ProductHome
	}
	return ""
}

// Schema helpers.

func object(required []string, props map[string]*genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

func str(description string, enum ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description, Enum: enum}
}

func integer(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Description: description}
}
