package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Gautammer/mangekimambi-api/internal/http/middlewarectx"
	"github.com/Gautammer/mangekimambi-api/internal/lib/envelope"
	"github.com/Gautammer/mangekimambi-api/internal/models"
	"github.com/Gautammer/mangekimambi-api/internal/services/subscription"
)

type SubscriptionServiceMock struct {
	mock.Mock
}

func (m *SubscriptionServiceMock) GetStatus(ctx context.Context, userUID string) (*subscription.Status, error) {
	args := m.Called(ctx, userUID)
	st, _ := args.Get(0).(*subscription.Status)
	return st, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestStatusHandler_ServeHTTP(t *testing.T) {
	codec, err := envelope.New("x1e8a1c1cf412b27ecd7a87db49f830g", "g9f051fdf0e6388x")
	require.NoError(t, err)
	user := &models.User{UID: "uid-1"}

	t.Run("active subscription", func(t *testing.T) {
		svcMock := new(SubscriptionServiceMock)
		end := time.Now().UTC().AddDate(0, 0, 10).Truncate(time.Second)
		days := 10
		svcMock.On("GetStatus", mock.Anything, "uid-1").
			Return(&subscription.Status{IsSubscribed: true, EndDate: &end, DaysRemaining: &days}, nil)
		handler := New(newNoopLogger(), svcMock, codec)

		req := httptest.NewRequest(http.MethodGet, "/subscription-status", nil)
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserKey, user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Success bool   `json:"success"`
			Data    string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		decoded, ok := codec.Decode(resp.Data).(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, decoded["isSubscribed"])
		assert.Equal(t, float64(10), decoded["daysRemaining"])
	})

	t.Run("missing user in context", func(t *testing.T) {
		handler := New(newNoopLogger(), new(SubscriptionServiceMock), codec)

		req := httptest.NewRequest(http.MethodGet, "/subscription-status", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("service error", func(t *testing.T) {
		svcMock := new(SubscriptionServiceMock)
		svcMock.On("GetStatus", mock.Anything, "uid-1").Return(nil, errors.New("db down"))
		handler := New(newNoopLogger(), svcMock, codec)

		req := httptest.NewRequest(http.MethodGet, "/subscription-status", nil)
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserKey, user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
