package services

import (
	"booklending/config"
	"booklending/utils"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer отправляет письма
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// EmailService предоставляет методы для отправки email
type EmailService struct {
	dialer  *gomail.Dialer
	from    string
	enabled bool
}

// NewEmailService создает новый экземпляр EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		dialer:  dialer,
		from:    cfg.SMTP.From,
		enabled: cfg.SMTP.Enabled,
	}
}

// SendEmail отправляет email; при выключенном SMTP письмо только логируется
func (s *EmailService) SendEmail(to, subject, body string) error {
	if !s.enabled {
		utils.LogDebug("SMTP выключен, письмо для %s не отправлено: %s", to, subject)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("ошибка отправки email: %v", err)
	}

	return nil
}
