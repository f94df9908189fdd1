package submitcomment

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
	"github.com/Gautammer/mangekimambi-api/internal/services/content"
)

type ContentServiceMock struct {
	mock.Mock
}

func (m *ContentServiceMock) SubmitComment(ctx context.Context, author *models.User, req content.CommentRequest) (*models.Comment, error) {
	args := m.Called(ctx, author, req)
	comment, _ := args.Get(0).(*models.Comment)
	return comment, args.Error(1)
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

func TestSubmitCommentHandler_ServeHTTP(t *testing.T) {
	codec := newTestCodec(t)
	user := &models.User{UID: "uid-1", Username: "user1"}

	tests := []struct {
		name           string
		requestBody    any
		mockComment    *models.Comment
		mockErr        error
		wantStatusCode int
		wantEmojiIDs   []int64
	}{
		{
			name: "comment on post",
			requestBody: Request{
				Type:    encodeField(t, codec, "post"),
				ID:      encodeField(t, codec, "7"),
				Content: encodeField(t, codec, "nice one"),
			},
			mockComment:    &models.Comment{ID: 42, PostID: 7, Content: "nice one"},
			wantStatusCode: http.StatusOK,
		},
		{
			// Клиент шлет emojis зашифрованной строкой с JSON-массивом.
			name: "reply with emojis",
			requestBody: Request{
				Type:    encodeField(t, codec, "comment"),
				ID:      encodeField(t, codec, "42"),
				Content: encodeField(t, codec, "reply"),
				Emojis:  encodeField(t, codec, "[1,3]"),
			},
			mockComment:    &models.Comment{ID: 43, PostID: 7},
			wantStatusCode: http.StatusOK,
			wantEmojiIDs:   []int64{1, 3},
		},
		{
			name: "emojis not a json array",
			requestBody: Request{
				Type:    encodeField(t, codec, "post"),
				ID:      encodeField(t, codec, "7"),
				Content: encodeField(t, codec, "x"),
				Emojis:  encodeField(t, codec, "smile"),
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "emojis not an envelope",
			requestBody: Request{
				Type:    encodeField(t, codec, "post"),
				ID:      encodeField(t, codec, "7"),
				Content: encodeField(t, codec, "x"),
				Emojis:  "not-an-envelope!",
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "target not found",
			requestBody: Request{
				Type:    encodeField(t, codec, "post"),
				ID:      encodeField(t, codec, "99"),
				Content: encodeField(t, codec, "x"),
			},
			mockErr:        content.ErrTargetNotFound,
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "invalid target type",
			requestBody: Request{
				Type:    encodeField(t, codec, "emoji"),
				ID:      encodeField(t, codec, "1"),
				Content: encodeField(t, codec, "x"),
			},
			mockErr:        content.ErrInvalidTarget,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "non-numeric target id",
			requestBody: Request{
				Type:    encodeField(t, codec, "post"),
				ID:      encodeField(t, codec, "seven"),
				Content: encodeField(t, codec, "x"),
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svcMock := new(ContentServiceMock)
			if tt.mockComment != nil || tt.mockErr != nil {
				wantEmojis := tt.wantEmojiIDs
				svcMock.On("SubmitComment", mock.Anything, user, mock.MatchedBy(func(req content.CommentRequest) bool {
					return assert.ObjectsAreEqual(wantEmojis, req.EmojiIDs)
				})).Return(tt.mockComment, tt.mockErr).Once()
			}
			handler := New(newNoopLogger(), svcMock, codec)

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				var err error
				bodyBytes, err = json.Marshal(tt.requestBody)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/submit_comment", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserKey, user))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			if tt.wantStatusCode == http.StatusOK {
				var resp struct {
					Success bool   `json:"success"`
					Data    string `json:"data"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.True(t, resp.Success)
				decoded, ok := codec.Decode(resp.Data).(map[string]any)
				require.True(t, ok)
				assert.EqualValues(t, tt.mockComment.ID, decoded["id"])
			}
			svcMock.AssertExpectations(t)
		})
	}
}
