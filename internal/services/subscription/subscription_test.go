package subscription

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Gautammer/mangekimambi-api/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) ExpireLapsedSubscription(ctx context.Context, userUID string, now time.Time) (bool, error) {
	args := m.Called(ctx, userUID, now)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) ApplyGrant(ctx context.Context, payment models.Payment, days int, now time.Time) (*models.Grant, error) {
	args := m.Called(ctx, payment, days, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Grant), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(key string, value any, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *CacheMock) Invalidate(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestComputeDays_Tiers(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		currency string
		want     int
	}{
		{name: "year tier", amount: 30, currency: "USD", want: 365},
		{name: "above year tier", amount: 100, currency: "USD", want: 365},
		{name: "quarter tier", amount: 10, currency: "USD", want: 90},
		{name: "just below quarter tier", amount: 9.99, currency: "USD", want: 30},
		{name: "month tier", amount: 5, currency: "USD", want: 30},
		{name: "week tier", amount: 2, currency: "USD", want: 7},
		{name: "day tier", amount: 0.5, currency: "USD", want: 1},
		{name: "below minimum", amount: 0.4, currency: "USD", want: 0},
		{name: "zero amount", amount: 0, currency: "USD", want: 0},
		{name: "tanzanian shillings month tier", amount: 12000, currency: "TSH", want: 30},
		{name: "kenyan shillings week tier", amount: 300, currency: "KES", want: 7},
		{name: "unknown currency treated as normalized", amount: 30, currency: "XYZ", want: 365},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeDays(tt.amount, tt.currency))
		})
	}
}

func TestService_ReconcileOnRead(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(24 * time.Hour)

	tests := []struct {
		name             string
		user             *models.User
		wantExpireCall   bool
		wantIsSubscribed bool
		wantEndNil       bool
	}{
		{
			name:             "lapsed subscription is cleared",
			user:             &models.User{UID: "u1", IsSubscribed: true, EndOfSubscriptionDate: &past},
			wantExpireCall:   true,
			wantIsSubscribed: false,
			wantEndNil:       true,
		},
		{
			name:             "active subscription untouched",
			user:             &models.User{UID: "u2", IsSubscribed: true, EndOfSubscriptionDate: &future},
			wantExpireCall:   false,
			wantIsSubscribed: true,
			wantEndNil:       false,
		},
		{
			name:             "no end date untouched",
			user:             &models.User{UID: "u3", IsSubscribed: false},
			wantExpireCall:   false,
			wantIsSubscribed: false,
			wantEndNil:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repoMock := new(RepoMock)
			cacheMock := new(CacheMock)
			svc := New(repoMock, cacheMock, false, newNoopLogger())

			if tt.wantExpireCall {
				repoMock.On("ExpireLapsedSubscription", mock.Anything, tt.user.UID, mock.Anything).
					Return(true, nil).Once()
				cacheMock.On("Invalidate", "substatus:"+tt.user.UID).Return(nil).Once()
			}

			got, err := svc.ReconcileOnRead(context.Background(), tt.user)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIsSubscribed, got.IsSubscribed)
			if tt.wantEndNil {
				assert.Nil(t, got.EndOfSubscriptionDate)
			} else {
				assert.NotNil(t, got.EndOfSubscriptionDate)
			}

			repoMock.AssertExpectations(t)
			cacheMock.AssertExpectations(t)
		})
	}
}

func TestService_ApplyGrant_ComputesDaysAndInvalidatesCache(t *testing.T) {
	repoMock := new(RepoMock)
	cacheMock := new(CacheMock)
	svc := New(repoMock, cacheMock, false, newNoopLogger())

	start := time.Now().UTC()
	end := start.AddDate(0, 0, 30)
	repoMock.On("ApplyGrant", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
		return p.Reference == "tx-1" && p.Status == models.PaymentStatusCompleted
	}), 30, mock.Anything).Return(&models.Grant{Start: start, End: end, DaysAdded: 30, Created: true}, nil).Once()
	cacheMock.On("Invalidate", "substatus:u1").Return(nil).Once()

	grant, err := svc.ApplyGrant(context.Background(), "u1", GrantRequest{
		Reference: "tx-1",
		Channel:   "mobile_money",
		Amount:    5,
		Currency:  "USD",
	})
	require.NoError(t, err)
	assert.True(t, grant.Created)
	assert.Equal(t, 30, grant.DaysAdded)

	repoMock.AssertExpectations(t)
	cacheMock.AssertExpectations(t)
}

func TestService_GetStatus_FreeMode(t *testing.T) {
	repoMock := new(RepoMock)
	cacheMock := new(CacheMock)
	svc := New(repoMock, cacheMock, true, newNoopLogger())

	// Бесплатный режим отвечает до обращения к хранилищу: пользователь
	// без единого платежа все равно подписан.
	status, err := svc.GetStatus(context.Background(), "no-payments-user")
	require.NoError(t, err)
	assert.True(t, status.IsSubscribed)
	assert.Nil(t, status.EndDate)
	assert.Nil(t, status.DaysRemaining)

	repoMock.AssertNotCalled(t, "GetUser")
}

func TestService_GetStatus_ActiveSubscription(t *testing.T) {
	repoMock := new(RepoMock)
	cacheMock := new(CacheMock)
	svc := New(repoMock, cacheMock, false, newNoopLogger())

	end := time.Now().UTC().Add(10 * 24 * time.Hour)
	user := &models.User{UID: "u1", IsSubscribed: true, EndOfSubscriptionDate: &end}

	cacheMock.On("Get", "substatus:u1", mock.Anything).Return(false, nil).Once()
	repoMock.On("GetUser", mock.Anything, "u1").Return(user, nil).Once()
	cacheMock.On("Set", "substatus:u1", mock.Anything, statusCacheTTL).Return(nil).Once()

	status, err := svc.GetStatus(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, status.IsSubscribed)
	require.NotNil(t, status.EndDate)
	require.NotNil(t, status.DaysRemaining)
	assert.Equal(t, 10, *status.DaysRemaining)
}

func TestService_GetStatus_LapsedSubscriptionReconciled(t *testing.T) {
	repoMock := new(RepoMock)
	cacheMock := new(CacheMock)
	svc := New(repoMock, cacheMock, false, newNoopLogger())

	past := time.Now().UTC().Add(-48 * time.Hour)
	user := &models.User{UID: "u1", IsSubscribed: true, EndOfSubscriptionDate: &past}

	cacheMock.On("Get", "substatus:u1", mock.Anything).Return(false, nil).Once()
	repoMock.On("GetUser", mock.Anything, "u1").Return(user, nil).Once()
	repoMock.On("ExpireLapsedSubscription", mock.Anything, "u1", mock.Anything).Return(true, nil).Once()
	cacheMock.On("Invalidate", "substatus:u1").Return(nil).Once()
	cacheMock.On("Set", "substatus:u1", mock.Anything, statusCacheTTL).Return(nil).Once()

	status, err := svc.GetStatus(context.Background(), "u1")
	require.NoError(t, err)
	// Истекшая подписка читается как неактивная без фоновой задачи.
	assert.False(t, status.IsSubscribed)
	assert.Nil(t, status.EndDate)
	assert.Nil(t, status.DaysRemaining)

	repoMock.AssertExpectations(t)
}

func TestService_GetStatus_CacheHit(t *testing.T) {
	repoMock := new(RepoMock)
	cacheMock := new(CacheMock)
	svc := New(repoMock, cacheMock, false, newNoopLogger())

	cacheMock.On("Get", "substatus:u1", mock.Anything).
		Run(func(args mock.Arguments) {
			status := args.Get(1).(*Status)
			status.IsSubscribed = true
		}).
		Return(true, nil).Once()

	status, err := svc.GetStatus(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, status.IsSubscribed)

	repoMock.AssertNotCalled(t, "GetUser")
}

func TestService_IsSubscribed_FreeModeShortCircuits(t *testing.T) {
	repoMock := new(RepoMock)
	cacheMock := new(CacheMock)
	svc := New(repoMock, cacheMock, true, newNoopLogger())

	past := time.Now().UTC().Add(-time.Hour)
	subscribed, err := svc.IsSubscribed(context.Background(), &models.User{
		UID:                   "u1",
		EndOfSubscriptionDate: &past,
	})
	require.NoError(t, err)
	assert.True(t, subscribed)

	repoMock.AssertNotCalled(t, "ExpireLapsedSubscription")
}
