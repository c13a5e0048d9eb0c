package capability

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/covera/internal/clock"
	"github.com/smallbiznis/covera/internal/config"
	customerdomain "github.com/smallbiznis/covera/internal/customer/domain"
	customerrepo "github.com/smallbiznis/covera/internal/customer/repository"
	customerservice "github.com/smallbiznis/covera/internal/customer/service"
	documentdomain "github.com/smallbiznis/covera/internal/document/domain"
	documentrepo "github.com/smallbiznis/covera/internal/document/repository"
	documentservice "github.com/smallbiznis/covera/internal/document/service"
	"github.com/smallbiznis/covera/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/covera/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/covera/internal/payment/repository"
	paymentservice "github.com/smallbiznis/covera/internal/payment/service"
	promodomain "github.com/smallbiznis/covera/internal/promocode/domain"
	promorepo "github.com/smallbiznis/covera/internal/promocode/repository"
	promoservice "github.com/smallbiznis/covera/internal/promocode/service"
	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/covera/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/covera/internal/subscription/service"
	"github.com/smallbiznis/covera/internal/tariff/ratetable"
	tariffservice "github.com/smallbiznis/covera/internal/tariff/service"
	"github.com/smallbiznis/covera/internal/vision"
	"github.com/smallbiznis/covera/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeExtractor struct {
	out vision.Extraction
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, kind vision.Kind, _ string) (vision.Extraction, error) {
	out := f.out
	out.Kind = kind
	return out, f.err
}

type fakeCollector struct{ provider string }

func (f fakeCollector) Provider() string { return f.provider }

func (f fakeCollector) RequestToPay(_ context.Context, req paymentdomain.CollectionRequest) (paymentdomain.CollectionResponse, error) {
	return paymentdomain.CollectionResponse{Status: "pending", TransactionReference: "EXT-" + req.Reference}, nil
}

type stubRenderer struct{}

func (stubRenderer) Render(context.Context, documentdomain.Proposal) ([]byte, error) {
	return []byte("%PDF-1.3"), nil
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStorage) Upload(_ context.Context, key, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "https://files.example.com/" + key, nil
}

type fixture struct {
	db     *gorm.DB
	box    *Toolbox
	vision *fakeExtractor
	promos promodomain.Service
	subs   subscriptiondomain.Service
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
		&paymentdomain.Transaction{},
		&paymentdomain.Notification{},
		&documentdomain.Document{},
	)
	node := dbtest.Node(t)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC))

	book, err := ratetable.Default()
	require.NoError(t, err)
	tariffs := tariffservice.New(tariffservice.Params{Log: log, Book: ratetable.NewStaticHolder(book)})
	customers := customerservice.New(customerservice.Params{DB: db, Log: log, GenID: node, Repo: customerrepo.Provide(), Clock: clk})
	promos := promoservice.New(promoservice.Params{DB: db, Log: log, GenID: node, Repo: promorepo.Provide(), Clock: clk})
	subs := subscriptionservice.New(subscriptionservice.Params{
		DB: db, Log: log, GenID: node, Repo: subscriptionrepo.Provide(), Clock: clk,
		Customers: customers, PromoCodes: promos,
	})
	documents := documentservice.New(documentservice.Params{
		DB: db, Log: log, GenID: node, Repo: documentrepo.Provide(),
		Renderer: stubRenderer{}, Storage: &memStorage{objects: map[string][]byte{}}, Clock: clk,
	})
	payments := paymentservice.New(paymentservice.Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Cfg:           config.Config{Epay: config.EpayConfig{BaseWebhookURL: "https://bot.example.com"}},
		Repo:          paymentrepo.Provide(),
		Collectors:    adapters.NewRegistry(fakeCollector{paymentdomain.ProviderMoMo}, fakeCollector{paymentdomain.ProviderAirtel}),
		Subscriptions: subs,
		Documents:     documents,
		Customers:     customers,
		Clock:         clk,
	})

	ex := &fakeExtractor{}
	box := New(Params{
		Log:           log,
		Clock:         clk,
		Tariffs:       tariffs,
		Customers:     customers,
		Subscriptions: subs,
		Payments:      payments,
		Documents:     documents,
		Promos:        promos,
		Vision:        ex,
	})
	return &fixture{db: db, box: box, vision: ex, promos: promos, subs: subs}
}

func newState() *sessiondomain.ConversationState {
	return &sessiondomain.ConversationState{
		SessionID: "sess-1",
		UserPhone: "+242066000000",
		Step:      sessiondomain.StepStart,
	}
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table(table).Count(&n).Error)
	return n
}

func mustSucceed(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	require.Equal(t, true, result["success"], "result: %v", result)
	return result
}

func TestToolboxRegistersEveryCapability(t *testing.T) {
	f := setup(t)
	assert.ElementsMatch(t, []string{
		"analyze_carte_grise", "analyze_passport", "analyze_cni", "analyze_niu",
		"calculate_auto_quotation", "calculate_voyage_quotation", "calculate_iac_quotation", "calculate_mrh_quotation",
		"get_or_create_client", "create_souscription",
		"save_auto_details", "save_voyage_details", "save_iac_details", "save_mrh_details",
		"initiate_momo_payment", "initiate_airtel_payment", "initiate_pay_on_delivery", "initiate_pay_on_agency",
		"validate_promo_code",
	}, f.box.Names())
	assert.Len(t, f.box.Bind(newState(), "").Declarations(), 19)
}

func TestAutoSubscriptionThroughPayOnDelivery(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	state := newState()
	turn := f.box.Bind(state, "https://media.example.com/cg.jpg")

	f.vision.out = vision.Extraction{Recognized: true, Fields: map[string]string{
		"fullname": "Jean K", "immatriculation": "BZ-123-AB", "power": "5 CV", "seat_number": "5", "fuel_type": "essence",
	}}
	res := mustSucceed(t, turn.Call(ctx, "analyze_carte_grise", map[string]any{}))
	assert.Equal(t, true, res["recognized"])
	require.NotNil(t, state.Collected)
	require.NotNil(t, state.Collected.Auto)
	assert.Equal(t, 5, state.Collected.Auto.Power)
	assert.Equal(t, "https://media.example.com/cg.jpg", state.Collected.Auto.DocumentURL)

	mustSucceed(t, turn.Call(ctx, "calculate_auto_quotation", map[string]any{
		"power": float64(5), "seat_number": "5", "fuel_type": "essence", "modele": "berline",
	}))
	require.NotNil(t, state.LastQuote)
	assert.Equal(t, int64(189064), state.LastQuote.Premium)
	assert.Equal(t, sessiondomain.StepQuoted, state.Step)

	client := mustSucceed(t, turn.Call(ctx, "get_or_create_client", map[string]any{"fullname": "Jean K"}))
	assert.Equal(t, false, client["existing"])
	assert.NotZero(t, state.CustomerID)

	res = turn.Call(ctx, "create_souscription", map[string]any{
		"product_type": "auto", "prime_ttc": float64(1000), "coverage_duration": "12 mois",
	})
	assert.Equal(t, false, res["success"])
	assert.Equal(t, ErrPremiumMismatch.Error(), res["error"])
	assert.Zero(t, f.count(t, "subscriptions"))

	sub := mustSucceed(t, turn.Call(ctx, "create_souscription", map[string]any{
		"product_type": "NSIA AUTO", "prime_ttc": float64(189064), "coverage_duration": "12 mois",
	}))
	assert.Equal(t, "OFFRE_12_MOIS", sub["coverage"])
	assert.Equal(t, sessiondomain.StepSubscribed, state.Step)

	again := mustSucceed(t, turn.Call(ctx, "create_souscription", map[string]any{
		"product_type": "auto", "prime_ttc": float64(189064), "coverage_duration": "OFFRE_12_MOIS",
	}))
	assert.Equal(t, sub["souscription_id"], again["souscription_id"])
	assert.Equal(t, int64(1), f.count(t, "subscriptions"))

	saved := mustSucceed(t, turn.Call(ctx, "save_auto_details", map[string]any{
		"fullname": "Jean K", "immatriculation": "bz-123-ab",
	}))
	assert.Equal(t, true, saved["document_attached"])
	assert.Equal(t, int64(1), f.count(t, "subscription_auto_details"))

	pay := mustSucceed(t, turn.Call(ctx, "initiate_pay_on_delivery", map[string]any{}))
	reference, _ := pay["reference"].(string)
	assert.True(t, strings.HasPrefix(reference, "NSIA-LIV-"), reference)
	assert.Equal(t, int64(189064), pay["amount"])
	assert.NotEmpty(t, pay["document_url"])
	assert.True(t, state.PaymentInitiated)
	assert.Equal(t, reference, state.PaymentReference)
	assert.Equal(t, sessiondomain.StepPaymentPending, state.Step)
	assert.Equal(t, int64(2), f.count(t, "documents"), "identity and proposal")
}

func TestMomoPaymentRecordsProvider(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	state := newState()
	turn := f.box.Bind(state, "")

	mustSucceed(t, turn.Call(ctx, "calculate_iac_quotation", map[string]any{"statut": "commerçante"}))
	mustSucceed(t, turn.Call(ctx, "get_or_create_client", map[string]any{}))
	mustSucceed(t, turn.Call(ctx, "create_souscription", map[string]any{"product_type": "iac", "prime_ttc": "12500"}))
	mustSucceed(t, turn.Call(ctx, "save_iac_details", map[string]any{
		"fullname": "Awa M", "statutPro": "commercant", "secteurActivite": "Commerce", "lieuTravail": "Marché Total",
	}))

	pay := mustSucceed(t, turn.Call(ctx, "initiate_momo_payment", map[string]any{}))
	assert.Equal(t, "EXT-"+pay["reference"].(string), pay["transaction_reference"])
	assert.Equal(t, paymentdomain.ProviderMoMo, state.PaymentProvider)
	assert.Equal(t, "242066000000", pay["phone"])
}

func TestSwitchingProductCancelsOpenSubscription(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	state := newState()
	turn := f.box.Bind(state, "")

	mustSucceed(t, turn.Call(ctx, "calculate_iac_quotation", map[string]any{}))
	mustSucceed(t, turn.Call(ctx, "get_or_create_client", map[string]any{}))
	first := mustSucceed(t, turn.Call(ctx, "create_souscription", map[string]any{"product_type": "iac", "prime_ttc": float64(12500)}))

	mustSucceed(t, turn.Call(ctx, "calculate_mrh_quotation", map[string]any{"forfait": "Équilibre"}))
	require.NotNil(t, state.LastQuote)
	second := mustSucceed(t, turn.Call(ctx, "create_souscription", map[string]any{
		"product_type": "mrh", "prime_ttc": float64(state.LastQuote.Premium),
	}))
	assert.NotEqual(t, first["souscription_id"], second["souscription_id"])

	old, err := f.subs.Get(ctx, first["souscription_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusCancelled, old.Status)
	assert.Equal(t, sessiondomain.ProductHome, state.Product)
}

func TestRequoteReplacesOpenSubscription(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	state := newState()
	turn := f.box.Bind(state, "")

	mustSucceed(t, turn.Call(ctx, "calculate_mrh_quotation", map[string]any{"forfait": "equilibre"}))
	mustSucceed(t, turn.Call(ctx, "get_or_create_client", map[string]any{}))
	first := mustSucceed(t, turn.Call(ctx, "create_souscription", map[string]any{
		"product_type": "mrh", "prime_ttc": float64(45000),
	}))

	mustSucceed(t, turn.Call(ctx, "calculate_mrh_quotation", map[string]any{"forfait": "confort"}))
	require.NotNil(t, state.LastQuote)
	second := mustSucceed(t, turn.Call(ctx, "create_souscription", map[string]any{
		"product_type": "mrh", "prime_ttc": float64(state.LastQuote.Premium),
	}))
	assert.NotEqual(t, first["souscription_id"], second["souscription_id"])
	assert.Equal(t, int64(75000), second["prime_ttc"])
	assert.Equal(t, second["souscription_id"], state.SubscriptionID.String())
	assert.Equal(t, second["coverage"], state.Coverage)

	old, err := f.subs.Get(ctx, first["souscription_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusCancelled, old.Status)
	current, err := f.subs.Get(ctx, second["souscription_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, int64(75000), current.Premium)
	assert.Equal(t, subscriptiondomain.StatusInProgress, current.Status)
}

func TestCapabilityArgumentValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	turn := f.box.Bind(newState(), "")

	res := turn.Call(ctx, "calculate_auto_quotation", map[string]any{
		"power": float64(8), "seat_number": float64(5), "modele": "taxi", "usage": "promenade",
	})
	assert.Equal(t, false, res["success"])
	assert.Equal(t, "invalid_tariff_input", res["error"])
	assert.Contains(t, res["message"], "TRANSPORT PUBLIC VOYAGEURS")

	res = turn.Call(ctx, "calculate_auto_quotation", map[string]any{"power": "abc", "seat_number": float64(5)})
	assert.Equal(t, ErrInvalidArgument.Error(), res["error"])

	res = turn.Call(ctx, "calculate_auto_quotation", map[string]any{"power": 5.5, "seat_number": float64(5)})
	assert.Equal(t, ErrInvalidArgument.Error(), res["error"])

	res = turn.Call(ctx, "create_souscription", map[string]any{"product_type": "auto", "prime_ttc": float64(1)})
	assert.Equal(t, ErrInvalidArgument.Error(), res["error"])

	res = turn.Call(ctx, "save_auto_details", map[string]any{"fullname": "Jean K", "immatriculation": "X"})
	assert.Equal(t, ErrInvalidArgument.Error(), res["error"])

	res = turn.Call(ctx, "calculate_voyage_quotation", map[string]any{
		"client_type": "étudiant", "zone": "EUROPE", "product": "SCHENGEN EXCLUSIF", "duration_days": float64(10),
	})
	assert.Equal(t, "invalid_tariff_input", res["error"])
	assert.Contains(t, res["message"], "MONDE ENTIER (EXCEPTÉ Le Congo)")

	res = turn.Call(ctx, "issue_refund", nil)
	assert.Equal(t, ErrUnknownCapability.Error(), res["error"])
}

func TestTravelQuoteAndPassport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	state := newState()
	turn := f.box.Bind(state, "")

	f.vision.out = vision.Extraction{Recognized: true, Fields: map[string]string{
		"full_name": "Marie N", "passport_number": "OA123456", "nationality": "Congolaise",
	}}
	mustSucceed(t, turn.Call(ctx, "analyze_passport", map[string]any{"image_url": "https://media.example.com/p.jpg"}))
	assert.Equal(t, sessiondomain.ProductTravel, state.Product)

	res := mustSucceed(t, turn.Call(ctx, "calculate_voyage_quotation", map[string]any{
		"client_type": "étudiante", "zone": "monde entier (excepté le congo)", "product": "etudiant classique", "duration_days": float64(92),
	}))
	assert.Equal(t, float64(65000), res["prime"])
	assert.Equal(t, "92 jours", state.LastQuote.Term)
	require.NotNil(t, state.Collected.Travel)
	assert.Equal(t, "OA123456", state.Collected.Travel.PassportNumber, "quote keeps the extracted passport")
	assert.Equal(t, "ETUDIANT", state.Collected.Travel.Category)
}

func TestVisionRejectsOtherDocument(t *testing.T) {
	f := setup(t)
	state := newState()
	turn := f.box.Bind(state, "")

	f.vision.out = vision.Extraction{Recognized: false, Message: "Cette image ne semble pas être une carte grise."}
	res := mustSucceed(t, turn.Call(context.Background(), "analyze_carte_grise", map[string]any{"image_url": "https://media.example.com/x.jpg"}))
	assert.Equal(t, false, res["recognized"])
	assert.Nil(t, state.Collected)
	assert.Empty(t, state.Product)

	res = turn.Call(context.Background(), "analyze_cni", map[string]any{})
	assert.Equal(t, ErrInvalidArgument.Error(), res["error"])
}

func TestPromoCodeValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.promos.Create(ctx, promodomain.CreateRequest{
		Code: "AGT-01", AgentName: "Paul", ReductionType: promodomain.ReductionPercentage, ReductionValue: 10,
	})
	require.NoError(t, err)

	state := newState()
	turn := f.box.Bind(state, "")
	res := mustSucceed(t, turn.Call(ctx, "validate_promo_code", map[string]any{"code": "agt-01"}))
	assert.Equal(t, "Paul", res["agent"])
	assert.True(t, state.PromoApplied)
	assert.Equal(t, "AGT-01", state.PromoCode)

	res = turn.Call(ctx, "validate_promo_code", map[string]any{"code": "NOPE"})
	assert.Equal(t, promodomain.ErrNotFound.Error(), res["error"])
	assert.False(t, state.PromoApplied)
}
