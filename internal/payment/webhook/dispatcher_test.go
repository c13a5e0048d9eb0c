package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/covera/internal/config"
	"github.com/smallbiznis/covera/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPayments struct {
	domain.Service

	mu    sync.Mutex
	calls []domain.Callback
	err   error
}

func (r *recordingPayments) Reconcile(_ context.Context, cb domain.Callback) (domain.ReconcileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cb)
	return domain.ReconcileResult{Reference: cb.Reference, Status: domain.MapExternalStatus(cb.ExternalStatus)}, r.err
}

func newDispatcher(payments domain.Service) *Dispatcher {
	return NewDispatcher(Params{
		Log:      zap.NewNop(),
		Cfg:      config.Config{Epay: config.EpayConfig{ReconcileDeadline: time.Second}},
		Payments: payments,
	})
}

func TestParse(t *testing.T) {
	cb, err := Parse([]byte(`{"transaction_reference":"NSIA-1","reference":"other","status":"SUCCESS"}`), "")
	require.NoError(t, err)
	assert.Equal(t, "NSIA-1", cb.Reference)
	assert.Equal(t, "SUCCESS", cb.ExternalStatus)
	assert.Equal(t, domain.ProviderUnknown, cb.Provider)

	cb, err = Parse([]byte(`{"reference":"NSIA-2","status":"failed","provider":"MTN"}`), "")
	require.NoError(t, err)
	assert.Equal(t, "NSIA-2", cb.Reference)
	assert.Equal(t, domain.ProviderMoMo, cb.Provider)

	cb, err = Parse([]byte(`{"reference":"NSIA-3","status":"pending","provider":"momo"}`), "airtel")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAirtel, cb.Provider, "route hint wins")

	_, err = Parse([]byte(`{"status":"success"}`), "")
	assert.ErrorIs(t, err, domain.ErrMissingReference)

	_, err = Parse([]byte(`not json`), "")
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestAcceptSchedulesReconciliation(t *testing.T) {
	payments := &recordingPayments{}
	d := newDispatcher(payments)

	cb, err := d.Accept([]byte(`{"transaction_reference":"NSIA-9","status":"success"}`), "momo")
	require.NoError(t, err)
	assert.Equal(t, "NSIA-9", cb.Reference)

	d.Wait()
	payments.mu.Lock()
	defer payments.mu.Unlock()
	require.Len(t, payments.calls, 1)
	assert.Equal(t, "NSIA-9", payments.calls[0].Reference)
	assert.Equal(t, domain.ProviderMoMo, payments.calls[0].Provider)
}

func TestAcceptRejectsMissingReference(t *testing.T) {
	payments := &recordingPayments{}
	d := newDispatcher(payments)

	_, err := d.Accept([]byte(`{"status":"success"}`), "")
	assert.ErrorIs(t, err, domain.ErrMissingReference)
	d.Wait()
	assert.Empty(t, payments.calls)
}

func TestReconcileErrorsAreSwallowed(t *testing.T) {
	payments := &recordingPayments{err: domain.ErrTransactionNotFound}
	d := newDispatcher(payments)

	_, err := d.Accept([]byte(`{"reference":"NSIA-404","status":"success"}`), "")
	require.NoError(t, err)
	require.NoError(t, d.Shutdown(context.Background()))

	_, err = d.Accept([]byte(`{"reference":"NSIA-405","status":"success"}`), "")
	assert.ErrorIs(t, err, ErrStopped, "stopped dispatcher refuses new work")
}
