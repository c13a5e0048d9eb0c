// Package webhook acknowledges gateway callbacks and reconciles them in the
// background.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/covera/internal/config"
	"github.com/smallbiznis/covera/internal/observability/tracing"
	"github.com/smallbiznis/covera/internal/payment/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultDeadline = 30 * time.Second

var ErrStopped = errors.New("webhook_dispatcher_stopped")

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	Log       *zap.Logger
	Cfg       config.Config
	Payments  domain.Service
}

type Dispatcher struct {
	log      *zap.Logger
	payments domain.Service
	deadline time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(p Params) *Dispatcher {
	deadline := p.Cfg.Epay.ReconcileDeadline
	if deadline <= 0 {
		deadline = defaultDeadline
	}
	d := &Dispatcher{
		log:      p.Log.Named("payment.webhook"),
		payments: p.Payments,
		deadline: deadline,
	}
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{OnStop: d.Shutdown})
	}
	return d
}

type callbackBody struct {
	TransactionReference string `json:"transaction_reference"`
	Reference            string `json:"reference"`
	Status               string `json:"status"`
	Provider             string `json:"provider"`
}

// Parse extracts the callback fields. providerHint comes from the legacy
// per-operator routes and wins over the payload.
func Parse(payload []byte, providerHint string) (domain.Callback, error) {
	var body callbackBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return domain.Callback{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	reference := strings.TrimSpace(body.TransactionReference)
	if reference == "" {
		reference = strings.TrimSpace(body.Reference)
	}
	if reference == "" {
		return domain.Callback{}, domain.ErrMissingReference
	}
	provider := strings.TrimSpace(providerHint)
	if provider == "" {
		provider = body.Provider
	}
	return domain.Callback{
		Reference:      reference,
		ExternalStatus: body.Status,
		Provider:       domain.InferProvider(provider, payload),
		Payload:        payload,
	}, nil
}

// Accept validates the callback and schedules reconciliation. The caller
// acknowledges as soon as Accept returns nil.
func (d *Dispatcher) Accept(payload []byte, providerHint string) (domain.Callback, error) {
	cb, err := Parse(payload, providerHint)
	if err != nil {
		d.log.Warn("callback rejected", zap.Error(err))
		return domain.Callback{}, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return domain.Callback{}, ErrStopped
	}
	d.wg.Add(1)
	d.mu.Unlock()

	d.log.Info("callback accepted",
		zap.String("reference", cb.Reference),
		zap.String("status", cb.ExternalStatus),
		zap.String("provider", cb.Provider),
	)
	go d.reconcile(cb)
	return cb, nil
}

func (d *Dispatcher) reconcile(cb domain.Callback) {
	defer d.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), d.deadline)
	defer cancel()
	ctx, span := tracing.StartSpan(ctx, "payment.reconcile",
		attribute.String("provider", cb.Provider),
		attribute.String("external_status", cb.ExternalStatus),
	)
	defer span.End()

	result, err := d.payments.Reconcile(ctx, cb)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconciliation failed")
		// The notification row stays unprocessed and is picked up by replay.
		d.log.Error("reconciliation failed", zap.String("reference", cb.Reference), zap.Error(err))
		return
	}
	d.log.Info("reconciliation done",
		zap.String("reference", result.Reference),
		zap.String("status", string(result.Status)),
		zap.Bool("replayed", result.Replayed),
		zap.Bool("applied", result.Applied),
	)
}

// Wait blocks until every scheduled reconciliation finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
