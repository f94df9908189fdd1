// Package notifier реализует почтовые уведомления администраторам о событиях
// платформы: новых комментариях и обращениях через форму обратной связи.
// События приходят из очередей RabbitMQ в виде JSON.
package notifier

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Gautammer/mangekimambi-api/internal/lib/sl"
	"github.com/Gautammer/mangekimambi-api/internal/lib/smtp"
	"github.com/Gautammer/mangekimambi-api/internal/models"
)

// Service отправляет почтовые уведомления администратору.
type Service struct {
	transport  smtp.TransportInterface
	adminEmail string
	log        *slog.Logger
}

// New создает новый экземпляр Service.
func New(transport smtp.TransportInterface, adminEmail string, log *slog.Logger) *Service {
	return &Service{
		transport:  transport,
		adminEmail: adminEmail,
		log:        log,
	}
}

// HandleComment обрабатывает событие нового комментария из очереди.
func (s *Service) HandleComment(body []byte) error {
	var comment models.Comment
	if err := json.Unmarshal(body, &comment); err != nil {
		s.log.Error("failed to unmarshal comment event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	subject := fmt.Sprintf("Новый комментарий к посту %d", comment.PostID)
	bodyText := fmt.Sprintf("Пользователь %s оставил комментарий:\n\n%s",
		comment.AuthorName, comment.Content)

	return s.sendEmail([]string{s.adminEmail}, subject, bodyText)
}

// HandleContact обрабатывает обращение через форму обратной связи.
func (s *Service) HandleContact(body []byte) error {
	var msg models.ContactMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal contact event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	subject := "Новое обращение через форму обратной связи"
	bodyText := fmt.Sprintf("От: %s <%s>\n\n%s", msg.Name, msg.Email, msg.Message)

	return s.sendEmail([]string{s.adminEmail}, subject, bodyText)
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", sl.Err(err))
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("addr", addr), sl.Err(err))
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		s.log.Error("failed to open DATA stream", sl.Err(err))
		return err
	}
	if _, err := io.WriteString(w, msg); err != nil {
		_ = w.Close()
		s.log.Error("failed to write message body", sl.Err(err))
		return err
	}
	if err := w.Close(); err != nil {
		s.log.Error("failed to close DATA stream", sl.Err(err))
		return err
	}

	if err := client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP session", sl.Err(err))
		return err
	}
	s.log.Info("notification email sent", slog.String("subject", subject))
	return nil
}
