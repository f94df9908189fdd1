package register

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Gautammer/mangekimambi-api/internal/http/middlewarectx"
	"github.com/Gautammer/mangekimambi-api/internal/lib/envelope"
	"github.com/Gautammer/mangekimambi-api/internal/models"
	"github.com/Gautammer/mangekimambi-api/internal/services/auth"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Register(ctx context.Context, client *models.Client, req auth.RegisterRequest) (*models.User, string, error) {
	args := m.Called(ctx, client, req)
	user, _ := args.Get(0).(*models.User)
	return user, args.String(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestCodec(t *testing.T) *envelope.Codec {
	t.Helper()
	codec, err := envelope.New("x1e8a1c1cf412b27ecd7a87db49f830g", "g9f051fdf0e6388x")
	require.NoError(t, err)
	return codec
}

func encodeField(t *testing.T, codec *envelope.Codec, value string) string {
	t.Helper()
	encoded, err := codec.Encode(value)
	require.NoError(t, err)
	return encoded
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	codec := newTestCodec(t)
	client := &models.Client{ID: 1, Name: "mobile-app"}

	tests := []struct {
		name           string
		requestBody    any
		mockUser       *models.User
		mockToken      string
		mockErr        error
		wantStatusCode int
		wantUsername   string
	}{
		{
			name: "valid registration",
			requestBody: Request{
				Username: encodeField(t, codec, "alice"),
				Password: encodeField(t, codec, "pw123456"),
			},
			mockUser:       &models.User{UID: "uid-1", Username: "alice"},
			mockToken:      "tok",
			wantStatusCode: http.StatusOK,
			wantUsername:   "alice",
		},
		{
			name: "optional fields decoded",
			requestBody: Request{
				Username: encodeField(t, codec, "bob"),
				Password: encodeField(t, codec, "pw123456"),
				Gender:   encodeField(t, codec, "male"),
				Email:    encodeField(t, codec, "bob@example.com"),
			},
			mockUser:       &models.User{UID: "uid-2", Username: "bob"},
			mockToken:      "tok",
			wantStatusCode: http.StatusOK,
			wantUsername:   "bob",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "missing username",
			requestBody:    Request{Password: encodeField(t, codec, "pw123456")},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "username taken",
			requestBody: Request{
				Username: encodeField(t, codec, "taken"),
				Password: encodeField(t, codec, "pw123456"),
			},
			mockErr:        auth.ErrUsernameTaken,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "email taken",
			requestBody: Request{
				Username: encodeField(t, codec, "fresh"),
				Password: encodeField(t, codec, "pw123456"),
				Email:    encodeField(t, codec, "dup@example.com"),
			},
			mockErr:        auth.ErrEmailTaken,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authMock := new(AuthServiceMock)
			if tt.mockUser != nil || tt.mockErr != nil {
				authMock.On("Register", mock.Anything, client, mock.MatchedBy(func(req auth.RegisterRequest) bool {
					// Поля в сервис приходят уже расшифрованными.
					return req.Username != "" && req.Password == "pw123456"
				})).Return(tt.mockUser, tt.mockToken, tt.mockErr).Once()
			}
			handler := New(newNoopLogger(), authMock, codec)

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				var err error
				bodyBytes, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.ClientKey, client))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			if tt.wantStatusCode == http.StatusOK {
				var resp Response
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.True(t, resp.Success)
				decodedUser, ok := codec.Decode(resp.User).(map[string]any)
				require.True(t, ok)
				assert.Equal(t, tt.wantUsername, decodedUser["username"])
			}
			authMock.AssertExpectations(t)
		})
	}
}
