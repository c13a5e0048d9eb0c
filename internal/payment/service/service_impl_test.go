package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/covera/internal/clock"
	"github.com/smallbiznis/covera/internal/config"
	customerdomain "github.com/smallbiznis/covera/internal/customer/domain"
	customerrepo "github.com/smallbiznis/covera/internal/customer/repository"
	customerservice "github.com/smallbiznis/covera/internal/customer/service"
	documentdomain "github.com/smallbiznis/covera/internal/document/domain"
	documentrepo "github.com/smallbiznis/covera/internal/document/repository"
	documentservice "github.com/smallbiznis/covera/internal/document/service"
	"github.com/smallbiznis/covera/internal/payment/adapters"
	"github.com/smallbiznis/covera/internal/payment/domain"
	"github.com/smallbiznis/covera/internal/payment/repository"
	promodomain "github.com/smallbiznis/covera/internal/promocode/domain"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/covera/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/covera/internal/subscription/service"
	"github.com/smallbiznis/covera/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeCollector struct {
	provider  string
	err       error
	onRequest func(domain.CollectionRequest)

	mu       sync.Mutex
	requests []domain.CollectionRequest
}

func (f *fakeCollector) Provider() string { return f.provider }

func (f *fakeCollector) RequestToPay(_ context.Context, req domain.CollectionRequest) (domain.CollectionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.onRequest != nil {
		f.onRequest(req)
	}
	if f.err != nil {
		return domain.CollectionResponse{}, f.err
	}
	return domain.CollectionResponse{Status: "pending", TransactionReference: "EXT-" + req.Reference, Message: "ok"}, nil
}

type pdfRenderer struct{}

func (pdfRenderer) Render(context.Context, documentdomain.Proposal) ([]byte, error) {
	return []byte("%PDF-1.3"), nil
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memStorage) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.objects[key] = data
	return "https://files.example.com/receipts/" + key, nil
}

type fixture struct {
	db            *gorm.DB
	svc           domain.Service
	customers     customerdomain.Service
	subscriptions subscriptiondomain.Service
	momo          *fakeCollector
	airtel        *fakeCollector
	storage       *memStorage
	redis         *miniredis.Miniredis
	clock         *clock.FakeClock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t,
		&customerdomain.Customer{},
		&promodomain.PromoCode{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.AutoDetail{},
		&subscriptiondomain.TravelDetail{},
		&subscriptiondomain.AccidentDetail{},
		&subscriptiondomain.HomeDetail{},
		&domain.Transaction{},
		&domain.Notification{},
		&documentdomain.Document{},
	)
	node := dbtest.Node(t)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	customers := customerservice.New(customerservice.Params{DB: db, Log: log, GenID: node, Repo: customerrepo.Provide(), Clock: clk})
	subscriptions := subscriptionservice.New(subscriptionservice.Params{
		DB: db, Log: log, GenID: node, Repo: subscriptionrepo.Provide(), Clock: clk, Customers: customers,
	})
	storage := &memStorage{objects: map[string][]byte{}}
	documents := documentservice.New(documentservice.Params{
		DB: db, Log: log, GenID: node, Repo: documentrepo.Provide(),
		Renderer: pdfRenderer{}, Storage: storage, Clock: clk,
	})

	momo := &fakeCollector{provider: domain.ProviderMoMo}
	airtel := &fakeCollector{provider: domain.ProviderAirtel}
	svc := New(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Cfg:           config.Config{Epay: config.EpayConfig{BaseWebhookURL: "https://bot.example.com", ConfirmationTTL: time.Hour}},
		Repo:          repository.Provide(),
		Collectors:    adapters.NewRegistry(momo, airtel),
		Subscriptions: subscriptions,
		Documents:     documents,
		Customers:     customers,
		Redis:         rdb,
		Clock:         clk,
	})

	return &fixture{
		db: db, svc: svc, customers: customers, subscriptions: subscriptions,
		momo: momo, airtel: airtel, storage: storage, redis: mr, clock: clk,
	}
}

// settleable creates the customer, an auto subscription and its detail.
func (f *fixture) settleable(t *testing.T, premium int64, withDetail bool) subscriptiondomain.Subscription {
	t.Helper()
	ctx := context.Background()
	res, err := f.customers.ResolveOrCreate(ctx, customerdomain.ResolveRequest{
		Phone:   "+242066000000",
		Profile: customerdomain.Profile{FullName: "Jean K"},
	})
	require.NoError(t, err)
	sub, err := f.subscriptions.Create(ctx, subscriptiondomain.CreateRequest{
		CustomerID:  res.Customer.ID.String(),
		ProductType: "auto",
		Premium:     premium,
		Coverage:    "12 mois",
	})
	require.NoError(t, err)
	if withDetail {
		require.NoError(t, f.subscriptions.SaveDetail(ctx, sub.ID.String(), &subscriptiondomain.AutoDetail{
			FullName: "Jean K", Registration: "BZ-123-AB", Model: "VOITURE", Power: 5, Seats: 5, Energy: "ESSENCE",
		}))
	}
	return sub
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table(table).Count(&n).Error)
	return n
}

func TestPayOnDeliveryEndToEnd(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := f.settleable(t, 50000, true)

	out, err := f.svc.InitiateDeferred(ctx, domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodDelivery,
		Amount:         50000,
		Phone:          "+242066000000",
		CustomerName:   "Jean K",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.DocumentURL)
	assert.True(t, strings.HasPrefix(out.Reference, "NSIA-LIV-"), out.Reference)
	assert.Equal(t, documentdomain.Rendered, out.ProposalOutcome)
	assert.Contains(t, out.Message, "50 000 FCFA")

	tx, err := f.svc.FindTransaction(ctx, out.Reference)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusPending, tx.Status)
	assert.Equal(t, domain.MethodDelivery, tx.Method)
	assert.Equal(t, int64(50000), tx.Amount)
	assert.Equal(t, "242066000000", tx.Phone)

	got, err := f.subscriptions.Get(ctx, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusPending, got.Status)
	assert.Equal(t, int64(1), f.count(t, "documents"))
	assert.Empty(t, f.momo.requests, "deferred settlement never calls the gateway")
}

func TestPayOnAgencyUsesCustomerName(t *testing.T) {
	f := setup(t)
	sub := f.settleable(t, 12500, true)

	out, err := f.svc.InitiateDeferred(context.Background(), domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodAgency,
		Amount:         12500,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Reference, "NSIA-AGC-"), out.Reference)
}

func TestDeferredRequiresDetail(t *testing.T) {
	f := setup(t)
	sub := f.settleable(t, 50000, false)

	_, err := f.svc.InitiateDeferred(context.Background(), domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodDelivery,
		Amount:         50000,
		CustomerName:   "Jean K",
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrDetailMissing)
	assert.Zero(t, f.count(t, "transactions"))
}

func TestDeferredUploadFailureKeepsReference(t *testing.T) {
	f := setup(t)
	f.storage.err = errors.New("bucket unreachable")
	sub := f.settleable(t, 50000, true)

	out, err := f.svc.InitiateDeferred(context.Background(), domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodDelivery,
		Amount:         50000,
		CustomerName:   "Jean K",
	})
	assert.ErrorIs(t, err, domain.ErrProposalNotDelivered)
	assert.True(t, strings.HasPrefix(out.Reference, "NSIA-LIV-"))
	assert.Equal(t, int64(1), f.count(t, "transactions"))
	assert.Zero(t, f.count(t, "documents"))
}

func TestInitiateCollection(t *testing.T) {
	f := setup(t)
	sub := f.settleable(t, 66113, true)

	out, err := f.svc.InitiateCollection(context.Background(), domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodMTN,
		Amount:         66113,
		Phone:          "06 600 00 00",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Reference, "NSIA-20250401080000-"+sub.ID.String()[:8]+"-"), out.Reference)
	assert.Equal(t, "242066000000", out.Phone)
	assert.Equal(t, domain.ProviderMoMo, out.Provider)
	assert.Equal(t, "EXT-"+out.Reference, out.GatewayReference)

	require.Len(t, f.momo.requests, 1)
	req := f.momo.requests[0]
	assert.Equal(t, int64(66113), req.Amount)
	assert.Equal(t, "Assurance NSIA AUTO", req.Description)
	assert.Equal(t, "https://bot.example.com/api/payment/callback/momo", req.CallbackURL)

	tx, err := f.svc.FindTransaction(context.Background(), out.Reference)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusPending, tx.Status)
	assert.Equal(t, domain.MethodMTN, tx.Method)
	assert.Equal(t, out.Transaction.ID, tx.ID)
	assert.Equal(t, "EXT-"+out.Reference, tx.ExternalReference)
}

func TestInitiateCollectionGatewayFailure(t *testing.T) {
	f := setup(t)
	f.airtel.err = domain.ErrGatewayUnavailable
	sub := f.settleable(t, 66113, true)

	_, err := f.svc.InitiateCollection(context.Background(), domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodAirtel,
		Amount:         66113,
		Phone:          "242055000000",
	})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	require.Len(t, f.airtel.requests, 1)
	tx, err := f.svc.FindTransaction(context.Background(), f.airtel.requests[0].Reference)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusCancelled, tx.Status, "the refused attempt stays on record")

	_, err = f.svc.InitiateCollection(context.Background(), domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodDelivery,
		Amount:         66113,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMethod)
}

func TestCollectionRecordedBeforeGatewayCall(t *testing.T) {
	f := setup(t)
	sub := f.settleable(t, 66113, true)

	var seen *domain.Transaction
	f.momo.onRequest = func(req domain.CollectionRequest) {
		tx, err := repository.Provide().FindTransactionByReference(context.Background(), f.db, req.Reference)
		require.NoError(t, err)
		seen = tx
	}
	out, err := f.svc.InitiateCollection(context.Background(), domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodMTN,
		Amount:         66113,
		Phone:          "242066000000",
	})
	require.NoError(t, err)
	require.NotNil(t, seen, "a callback racing the gateway response finds the transaction")
	assert.Equal(t, out.Reference, seen.Reference)
	assert.Equal(t, subscriptiondomain.StatusPending, seen.Status)
}

func TestReferencesDistinctWithinOneSecond(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.settleable(t, 66113, true)
	second := f.settleable(t, 66113, true)

	refs := map[string]bool{}
	for _, sub := range []subscriptiondomain.Subscription{first, second, first} {
		out, err := f.svc.InitiateCollection(ctx, domain.InitiateRequest{
			SubscriptionID: sub.ID.String(),
			Method:         domain.MethodMTN,
			Amount:         66113,
			Phone:          "242066000000",
		})
		require.NoError(t, err)
		assert.False(t, refs[out.Reference], "reference reused: %s", out.Reference)
		refs[out.Reference] = true
	}
	out, err := f.svc.InitiateDeferred(ctx, domain.InitiateRequest{
		SubscriptionID: second.ID.String(),
		Method:         domain.MethodDelivery,
		Amount:         66113,
		CustomerName:   "Jean K",
	})
	require.NoError(t, err)
	assert.False(t, refs[out.Reference])

	assert.Equal(t, int64(4), f.count(t, "transactions"))
}

func TestSettlingTerminalSubscriptionRejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub, ref := f.collect(t)
	_, err := f.svc.Reconcile(ctx, domain.Callback{Reference: ref, ExternalStatus: "success"})
	require.NoError(t, err)

	_, err = f.svc.InitiateDeferred(ctx, domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodAgency,
		Amount:         66113,
		CustomerName:   "Jean K",
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotSettleable)

	_, err = f.svc.InitiateCollection(ctx, domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodMTN,
		Amount:         66113,
		Phone:          "242066000000",
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotSettleable)

	cancelled := f.settleable(t, 50000, true)
	_, err = f.subscriptions.UpdateStatus(ctx, cancelled.ID, subscriptiondomain.StatusCancelled)
	require.NoError(t, err)
	_, err = f.svc.InitiateDeferred(ctx, domain.InitiateRequest{
		SubscriptionID: cancelled.ID.String(),
		Method:         domain.MethodDelivery,
		Amount:         50000,
		CustomerName:   "Jean K",
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotSettleable)

	assert.Equal(t, int64(1), f.count(t, "transactions"))
	assert.Len(t, f.momo.requests, 1)
	assert.Zero(t, f.count(t, "documents"))
}

func TestAmountMustMatchPremium(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := f.settleable(t, 50000, true)

	_, err := f.svc.InitiateCollection(ctx, domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodMTN,
		Amount:         100,
		Phone:          "242066000000",
	})
	assert.ErrorIs(t, err, domain.ErrAmountMismatch)

	_, err = f.svc.InitiateDeferred(ctx, domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodDelivery,
		Amount:         50001,
		CustomerName:   "Jean K",
	})
	assert.ErrorIs(t, err, domain.ErrAmountMismatch)

	_, err = f.svc.InitiateDeferred(ctx, domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodDelivery,
		Amount:         0,
		CustomerName:   "Jean K",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	assert.Zero(t, f.count(t, "transactions"))
	assert.Empty(t, f.momo.requests)
	got, err := f.subscriptions.Get(ctx, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusInProgress, got.Status)
}

func TestDeferredStatusRollsBackWithTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub := f.settleable(t, 50000, true)
	require.NoError(t, f.db.Migrator().DropTable(&domain.Transaction{}))

	_, err := f.svc.InitiateDeferred(ctx, domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodDelivery,
		Amount:         50000,
		CustomerName:   "Jean K",
	})
	require.Error(t, err)

	got, err := f.subscriptions.Get(ctx, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusInProgress, got.Status)
	assert.Zero(t, f.count(t, "documents"))
}

func (f *fixture) collect(t *testing.T) (subscriptiondomain.Subscription, string) {
	t.Helper()
	sub := f.settleable(t, 66113, true)
	out, err := f.svc.InitiateCollection(context.Background(), domain.InitiateRequest{
		SubscriptionID: sub.ID.String(),
		Method:         domain.MethodMTN,
		Amount:         66113,
		Phone:          "242066000000",
	})
	require.NoError(t, err)
	return sub, out.Reference
}

func TestReconcileSuccessIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub, ref := f.collect(t)

	cb := domain.Callback{Reference: ref, ExternalStatus: "SUCCESS", Payload: []byte(`{"reference":"` + ref + `","status":"SUCCESS","provider":"momo"}`)}
	first, err := f.svc.Reconcile(ctx, cb)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.False(t, first.Replayed)
	assert.Equal(t, subscriptiondomain.StatusValid, first.Status)
	assert.Equal(t, domain.ProviderMoMo, first.Provider)

	confirmed, err := f.svc.IsConfirmed(ctx, ref)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Equal(t, time.Hour, f.redis.TTL(ConfirmedKey(ref)))

	second, err := f.svc.Reconcile(ctx, cb)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.False(t, second.Applied)

	assert.Equal(t, int64(1), f.count(t, "payment_notifications"))
	tx, err := f.svc.FindTransaction(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusValid, tx.Status)
	got, err := f.subscriptions.Get(ctx, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusValid, got.Status)
}

func TestReconcileNeverDowngrades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub, ref := f.collect(t)

	_, err := f.svc.Reconcile(ctx, domain.Callback{Reference: ref, ExternalStatus: "completed"})
	require.NoError(t, err)

	late, err := f.svc.Reconcile(ctx, domain.Callback{Reference: ref, ExternalStatus: "failed"})
	require.NoError(t, err)
	assert.False(t, late.Applied)

	tx, err := f.svc.FindTransaction(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusValid, tx.Status)
	got, err := f.subscriptions.Get(ctx, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusValid, got.Status)
}

func TestReconcileFailureCancelsTransactionOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sub, ref := f.collect(t)

	res, err := f.svc.Reconcile(ctx, domain.Callback{Reference: ref, ExternalStatus: "cancelled"})
	require.NoError(t, err)
	assert.True(t, res.Applied)

	confirmed, err := f.svc.IsConfirmed(ctx, ref)
	require.NoError(t, err)
	assert.False(t, confirmed)

	got, err := f.subscriptions.Get(ctx, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusInProgress, got.Status)
}

func TestReconcileUnknownReferenceIsReplayable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Reconcile(ctx, domain.Callback{})
	assert.ErrorIs(t, err, domain.ErrMissingReference)

	sub, ref := f.collect(t)
	orphan := ref + "-X"
	_, err = f.svc.Reconcile(ctx, domain.Callback{Reference: orphan, ExternalStatus: "success"})
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	n, err := f.svc.ReplayPending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repository.Provide().InsertTransaction(ctx, f.db, &domain.Transaction{
		ID:             987654321,
		SubscriptionID: sub.ID,
		Amount:         66113,
		Reference:      orphan,
		Method:         domain.MethodMTN,
		Status:         subscriptiondomain.StatusPending,
		CreatedAt:      f.clock.Now(),
		UpdatedAt:      f.clock.Now(),
	}))

	n, err = f.svc.ReplayPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	confirmed, err := f.svc.IsConfirmed(ctx, orphan)
	require.NoError(t, err)
	assert.True(t, confirmed)
}
