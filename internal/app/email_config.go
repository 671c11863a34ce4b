package app

import (
	"strings"

	"github.com/charlesng35/internai/pkg/mail"
)

// SMTPSettings adapts the email section for pkg/mail. The dial timeout
// never outlasts the delivery deadline the services enforce.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	smtp := c.SMTP
	timeout := smtp.Timeout
	if c.DeliveryTimeout > 0 && (timeout <= 0 || timeout > c.DeliveryTimeout) {
		timeout = c.DeliveryTimeout
	}
	return mail.SMTPSettings{
		Enabled:  smtp.Enabled,
		Host:     strings.TrimSpace(smtp.Host),
		Port:     smtp.Port,
		Username: strings.TrimSpace(smtp.Username),
		Password: smtp.Password,
		From:     strings.TrimSpace(smtp.From),
		UseTLS:   smtp.UseTLS,
		Timeout:  timeout,
	}
}
