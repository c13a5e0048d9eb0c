package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	assistantdomain "github.com/smallbiznis/covera/internal/assistant/domain"
	"github.com/smallbiznis/covera/internal/clock"
	"github.com/smallbiznis/covera/internal/config"
	paymentdomain "github.com/smallbiznis/covera/internal/payment/domain"
	"github.com/smallbiznis/covera/internal/payment/webhook"
	promodomain "github.com/smallbiznis/covera/internal/promocode/domain"
	promorepo "github.com/smallbiznis/covera/internal/promocode/repository"
	promoservice "github.com/smallbiznis/covera/internal/promocode/service"
	sessiondomain "github.com/smallbiznis/covera/internal/session/domain"
	sessionrepo "github.com/smallbiznis/covera/internal/session/repository"
	sessionservice "github.com/smallbiznis/covera/internal/session/service"
	subscriptiondomain "github.com/smallbiznis/covera/internal/subscription/domain"
	"github.com/smallbiznis/covera/internal/tariff/ratetable"
	tariffservice "github.com/smallbiznis/covera/internal/tariff/service"
	"github.com/smallbiznis/covera/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAssistant struct {
	reply assistantdomain.ChatReply
	err   error
	got   assistantdomain.ChatRequest
}

func (f *fakeAssistant) Chat(_ context.Context, req assistantdomain.ChatRequest) (assistantdomain.ChatReply, error) {
	f.got = req
	return f.reply, f.err
}

type fakePayments struct {
	paymentdomain.Service

	mu        sync.Mutex
	callbacks []paymentdomain.Callback
}

func (f *fakePayments) Reconcile(_ context.Context, cb paymentdomain.Callback) (paymentdomain.ReconcileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, cb)
	return paymentdomain.ReconcileResult{Reference: cb.Reference, Status: subscriptiondomain.StatusValid, Applied: true}, nil
}

type testServer struct {
	engine     *gin.Engine
	assistant  *fakeAssistant
	payments   *fakePayments
	dispatcher *webhook.Dispatcher
	sessions   sessiondomain.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cfg := config.Config{Session: config.SessionConfig{TTL: time.Hour}}

	db := dbtest.Open(t, &promodomain.PromoCode{})
	book, err := ratetable.Default()
	require.NoError(t, err)

	payments := &fakePayments{}
	ts := &testServer{
		engine:     gin.New(),
		assistant:  &fakeAssistant{},
		payments:   payments,
		dispatcher: webhook.NewDispatcher(webhook.Params{Log: log, Cfg: cfg, Payments: payments}),
		sessions:   sessionservice.New(sessionservice.Params{Log: log, Repo: sessionrepo.NewRedis(client), Clock: clk, Config: cfg}),
	}
	ts.engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:        ts.engine,
		Cfg:        cfg,
		Log:        log,
		Assistant:  ts.assistant,
		Sessions:   ts.sessions,
		Tariffs:    tariffservice.New(tariffservice.Params{Log: log, Book: ratetable.NewStaticHolder(book)}),
		Promos:     promoservice.New(promoservice.Params{DB: db, Log: log, GenID: dbtest.Node(t), Repo: promorepo.Provide(), Clock: clk}),
		Dispatcher: ts.dispatcher,
	})
	srv.RegisterRoutes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) json(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return ts.do(t, method, path, raw, "application/json")
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestChatForwardsFormFields(t *testing.T) {
	ts := newTestServer(t)
	ts.assistant.reply = assistantdomain.ChatReply{Reply: "Bonjour !", SessionID: "s-1", Metadata: map[string]any{"step": "start"}}

	form := url.Values{
		"msg":          {"bonjour"},
		"session_id":   {"s-1"},
		"user_phone":   {"+242066000000"},
		"media_url":    {"https://media.example.com/cg.jpg"},
		"message_type": {"image"},
	}
	rec := ts.do(t, http.MethodPost, "/api/chat", []byte(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Bonjour !", body["reply"])
	assert.Equal(t, "s-1", body["session_id"])
	assert.Equal(t, "+242066000000", ts.assistant.got.Phone)
	assert.Equal(t, "https://media.example.com/cg.jpg", ts.assistant.got.MediaURL)
	assert.Equal(t, "image", ts.assistant.got.MessageType)
}

func TestChatErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/chat", []byte("session_id=s-1"), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.assistant.reply = assistantdomain.ChatReply{Reply: "Patientez", SessionID: "s-1"}
	ts.assistant.err = assistantdomain.ErrRateLimited
	rec = ts.do(t, http.MethodPost, "/api/chat", []byte("msg=salut&session_id=s-1"), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Patientez", decode(t, rec)["reply"])

	ts.assistant.reply = assistantdomain.ChatReply{}
	ts.assistant.err = assert.AnError
	rec = ts.do(t, http.MethodPost, "/api/chat", []byte("msg=salut&session_id=s-1"), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, chatFallbackReply, body["reply"])
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestSessionSummaryAndDelete(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	rec := ts.do(t, http.MethodGet, "/api/session/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	state, _, err := ts.sessions.LoadOrCreate(ctx, "s-9", "+242066000000")
	require.NoError(t, err)
	state.AppendMessage(sessiondomain.RoleUser, "bonjour", time.Now())
	state.SelectProduct(sessiondomain.ProductTravel)
	require.NoError(t, ts.sessions.Save(ctx, state))

	rec = ts.do(t, http.MethodGet, "/api/session/s-9", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "voyage", body["product"])
	assert.Equal(t, float64(1), body["message_count"])
	assert.Equal(t, false, body["quotation_generated"])

	rec = ts.do(t, http.MethodDelete, "/api/session/s-9", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/session/s-9", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentCallbacks(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/payment/callback/payment-notification",
		[]byte(`{"status":"SUCCESSFUL"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])

	rec = ts.do(t, http.MethodPost, "/api/payment/callback/airtel",
		[]byte(`{"transaction_reference":"NSIA-20250401080000-12345678","status":"SUCCESSFUL"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	ts.dispatcher.Wait()
	require.Len(t, ts.payments.callbacks, 1)
	assert.Equal(t, "NSIA-20250401080000-12345678", ts.payments.callbacks[0].Reference)
	assert.Equal(t, paymentdomain.ProviderAirtel, ts.payments.callbacks[0].Provider)
}

func TestPaymentCallbackAcknowledgesUnprocessable(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/payment/callback/payment-notification",
		[]byte(`{"transaction_reference":`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	require.NoError(t, ts.dispatcher.Shutdown(context.Background()))
	rec = ts.do(t, http.MethodPost, "/api/payment/callback/momo",
		[]byte(`{"transaction_reference":"NSIA-20250401080000-12345678","status":"SUCCESSFUL"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = ts.do(t, http.MethodPost, "/api/payment/callback/momo",
		[]byte(`{"status":"SUCCESSFUL"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, ts.payments.callbacks)
}

func TestQuoteEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.json(t, http.MethodPost, "/api/quotes/auto", map[string]any{"power": 5, "seat_number": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	offer := decode(t, rec)["OFFRE_12_MOIS"].(map[string]any)
	assert.Equal(t, float64(189064), offer["PRIME_TOTALE"])

	rec = ts.json(t, http.MethodPost, "/api/quotes/auto", map[string]any{"power": 5, "seat_number": 5, "modele": "taxi", "usage": "promenade"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "TRANSPORT PUBLIC VOYAGEURS")

	rec = ts.json(t, http.MethodPost, "/api/quotes/travel", map[string]any{
		"client_type": "particulier", "zone": "europe", "product": "schengen exclusif", "duration_days": 7,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(14500), decode(t, rec)["prime"])

	rec = ts.do(t, http.MethodGet, "/api/quotes/accident", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(12500), decode(t, rec)["prime"])

	rec = ts.do(t, http.MethodGet, "/api/quotes/accident?status=astronaute", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/quotes/home?tier=confort", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	tier := decode(t, rec)["formule"].(map[string]any)
	assert.Equal(t, float64(55000000), tier["plafond"])

	rec = ts.do(t, http.MethodGet, "/api/quotes/travel/catalog", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "PELERIN"))
}

func TestPromoCodeEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.json(t, http.MethodPost, "/api/promo-codes", map[string]any{
		"code": "AGT-77", "agent_name": "Paul", "reduction_type": "pourcentage", "reduction_value": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.json(t, http.MethodPost, "/api/promo-codes/validate", map[string]any{"code": "agt-77"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["valid"])

	rec = ts.json(t, http.MethodPost, "/api/promo-codes/validate", map[string]any{"code": "NONE"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
