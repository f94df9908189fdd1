package notifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Gautammer/mangekimambi-api/internal/lib/smtp"
	"github.com/Gautammer/mangekimambi-api/internal/models"
)

type ClientMock struct {
	mock.Mock
	data bytes.Buffer
}

func (m *ClientMock) Mail(from string) error {
	args := m.Called(from)
	return args.Error(0)
}

func (m *ClientMock) Rcpt(to string) error {
	args := m.Called(to)
	return args.Error(0)
}

func (m *ClientMock) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	return nopWriteCloser{&m.data}, nil
}

func (m *ClientMock) Quit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *ClientMock) Close() error {
	return nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type TransportMock struct {
	mock.Mock
	client smtp.Client
}

func (m *TransportMock) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Error(0) != nil {
		return nil, args.Error(0)
	}
	return m.client, nil
}

func (m *TransportMock) GetSMTPUser() string {
	return "noreply@example.com"
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_HandleComment(t *testing.T) {
	client := new(ClientMock)
	client.On("Mail", "noreply@example.com").Return(nil)
	client.On("Rcpt", "admin@example.com").Return(nil)
	client.On("Data").Return(nil, nil)
	client.On("Quit").Return(nil)

	transport := &TransportMock{client: client}
	transport.On("Connect").Return(nil)

	svc := New(transport, "admin@example.com", newNoopLogger())

	body, err := json.Marshal(models.Comment{
		ID: 42, PostID: 7, AuthorName: "someuser", Content: "nice one",
	})
	require.NoError(t, err)

	require.NoError(t, svc.HandleComment(body))
	sent := client.data.String()
	assert.Contains(t, sent, "To: admin@example.com")
	assert.Contains(t, sent, "someuser")
	assert.Contains(t, sent, "nice one")
	client.AssertExpectations(t)
}

func TestService_HandleContact(t *testing.T) {
	client := new(ClientMock)
	client.On("Mail", "noreply@example.com").Return(nil)
	client.On("Rcpt", "admin@example.com").Return(nil)
	client.On("Data").Return(nil, nil)
	client.On("Quit").Return(nil)

	transport := &TransportMock{client: client}
	transport.On("Connect").Return(nil)

	svc := New(transport, "admin@example.com", newNoopLogger())

	body, err := json.Marshal(models.ContactMessage{
		Name: "someone", Email: "a@b.c", Message: "hello",
	})
	require.NoError(t, err)

	require.NoError(t, svc.HandleContact(body))
	assert.Contains(t, client.data.String(), "someone")
}

func TestService_HandleComment_BadJSON(t *testing.T) {
	transport := &TransportMock{}
	svc := New(transport, "admin@example.com", newNoopLogger())

	err := svc.HandleComment([]byte("not a json"))
	assert.Error(t, err)
	transport.AssertNotCalled(t, "Connect")
}

func TestService_HandleContact_ConnectError(t *testing.T) {
	transport := &TransportMock{}
	transport.On("Connect").Return(errors.New("dial failed"))
	svc := New(transport, "admin@example.com", newNoopLogger())

	body, err := json.Marshal(models.ContactMessage{Name: "someone"})
	require.NoError(t, err)

	assert.Error(t, svc.HandleContact(body))
}
