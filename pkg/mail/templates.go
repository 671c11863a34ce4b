package mail

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

var (
	verificationTemplate = template.Must(template.New("verification").Parse(
		`Hi {{.Name}},

Your verification code is {{.Code}}.

The code expires in {{.Minutes}} minutes. If you did not create an account you can ignore this email.
`))

	passwordResetTemplate = template.Must(template.New("password_reset").Parse(
		`Hi {{.Name}},

We received a request to reset your password. Open the link below to choose a new one:

{{.Link}}

The link expires in {{.Minutes}} minutes and can be used once. If you did not request a reset you can ignore this email.
`))
)

// VerificationCodeMessage composes the message carrying a registration code.
func VerificationCodeMessage(to, name, code string, ttl time.Duration) (Message, error) {
	body, err := execute(verificationTemplate, map[string]any{
		"Name":    displayName(name),
		"Code":    code,
		"Minutes": minutes(ttl),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "Your verification code", Body: body, Preview: "code " + code}, nil
}

// PasswordResetMessage composes the message carrying a password reset link.
func PasswordResetMessage(to, name, link string, ttl time.Duration) (Message, error) {
	body, err := execute(passwordResetTemplate, map[string]any{
		"Name":    displayName(name),
		"Link":    link,
		"Minutes": minutes(ttl),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: []string{to}, Subject: "Reset your password", Body: body}, nil
}

func execute(tpl *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mail: render %s: %w", tpl.Name(), err)
	}
	return buf.String(), nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

func minutes(ttl time.Duration) int {
	m := int(ttl.Round(time.Minute) / time.Minute)
	if m < 1 {
		return 1
	}
	return m
}
