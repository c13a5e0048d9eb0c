package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/covera/internal/clock"
	"github.com/smallbiznis/covera/internal/customer/domain"
	"github.com/smallbiznis/covera/internal/customer/repository"
	"github.com/smallbiznis/covera/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	return New(Params{
		DB:    dbtest.Open(t, &domain.Customer{}),
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)),
	})
}

func TestResolveOrCreateIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.ResolveOrCreate(ctx, domain.ResolveRequest{
		Phone:   "+242066000000",
		Profile: domain.Profile{FullName: "Jean K"},
	})
	require.NoError(t, err)
	assert.False(t, first.Existing)
	assert.Equal(t, "242066000000", first.Customer.Phone)
	assert.NotZero(t, first.Customer.ID)

	second, err := svc.ResolveOrCreate(ctx, domain.ResolveRequest{Phone: "066000000"})
	require.NoError(t, err)
	assert.True(t, second.Existing)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)
	assert.Equal(t, "Jean K", second.Customer.FullName)
}

func TestResolveOrCreateFillsMissingProfileOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.ResolveOrCreate(ctx, domain.ResolveRequest{
		Phone:   "242055123456",
		Profile: domain.Profile{FullName: "Awa M"},
	})
	require.NoError(t, err)

	res, err := svc.ResolveOrCreate(ctx, domain.ResolveRequest{
		Phone:   "242055123456",
		Profile: domain.Profile{FullName: "Someone Else", Address: "Brazzaville, Poto-Poto"},
	})
	require.NoError(t, err)
	assert.True(t, res.Existing)
	assert.Equal(t, "Awa M", res.Customer.FullName)
	assert.Equal(t, "Brazzaville, Poto-Poto", res.Customer.Address)
}

func TestResolveOrCreateRejectsBadPhone(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ResolveOrCreate(context.Background(), domain.ResolveRequest{Phone: "not a phone"})
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)
}

func TestGetByID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.ResolveOrCreate(ctx, domain.ResolveRequest{Phone: "242066000001"})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, created.Customer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.Customer.Phone, got.Phone)

	_, err = svc.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.GetByID(ctx, "1234567890")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
