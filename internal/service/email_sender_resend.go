package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/resend/resend-go"
	"github.com/sirupsen/logrus"
)

var ErrEmailNotConfigured = errors.New("email sender not configured")

var emailTemplates = template.Must(template.New("verify").Parse(`<div style="font-family:sans-serif;max-width:600px;margin:0 auto">
<h2>Verify your email</h2>
<p>Hello {{.Name}},</p>
<p>Thanks for signing up. Please confirm your email address by clicking the link below:</p>
<p><a href="{{.Link}}" style="display:inline-block;padding:10px 20px;background:#2563eb;color:#fff;text-decoration:none;border-radius:4px">Verify Email</a></p>
<p>This link expires in 24 hours.</p>
<p>If you did not create an account, you can ignore this email.</p>
</div>`))

func init() {
	template.Must(emailTemplates.New("reset").Parse(`<div style="font-family:sans-serif;max-width:600px;margin:0 auto">
<h2>Reset your password</h2>
<p>Hello {{.Name}},</p>
<p>We received a request to reset your password. Click the link below to choose a new one:</p>
<p><a href="{{.Link}}" style="display:inline-block;padding:10px 20px;background:#2563eb;color:#fff;text-decoration:none;border-radius:4px">Reset Password</a></p>
<p>This link expires in 1 hour.</p>
<p>If you did not request a password reset, you can ignore this email.</p>
</div>`))
}

type emailContent struct {
	Subject string
	HTML    string
	Text    string
}

type emailLinks struct {
	AppBaseURL string
	VerifyPath string
	ResetPath  string
}

func newEmailLinks(appBaseURL string) emailLinks {
	return emailLinks{
		AppBaseURL: strings.TrimRight(appBaseURL, "/"),
		VerifyPath: "/verify-email",
		ResetPath:  "/reset-password",
	}
}

func (l emailLinks) build(path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", l.AppBaseURL, path, url.QueryEscape(token))
}

func (l emailLinks) verification(name, token string) (emailContent, error) {
	link := l.build(l.VerifyPath, token)
	html, err := renderEmail("verify", name, link)
	if err != nil {
		return emailContent{}, err
	}
	return emailContent{
		Subject: "Verify your email",
		HTML:    html,
		Text:    fmt.Sprintf("Hello %s,\n\nPlease verify your email address by opening this link:\n%s\n\nThis link expires in 24 hours.", name, link),
	}, nil
}

func (l emailLinks) passwordReset(name, token string) (emailContent, error) {
	link := l.build(l.ResetPath, token)
	html, err := renderEmail("reset", name, link)
	if err != nil {
		return emailContent{}, err
	}
	return emailContent{
		Subject: "Reset your password",
		HTML:    html,
		Text:    fmt.Sprintf("Hello %s,\n\nReset your password by opening this link:\n%s\n\nThis link expires in 1 hour.", name, link),
	}, nil
}

func renderEmail(name, recipient, link string) (string, error) {
	var buf bytes.Buffer
	err := emailTemplates.ExecuteTemplate(&buf, name, struct{ Name, Link string }{recipient, link})
	if err != nil {
		return "", fmt.Errorf("render %s email: %w", name, err)
	}
	return buf.String(), nil
}

// ResendEmailSender delivers mail through the Resend API.
type ResendEmailSender struct {
	From  string
	links emailLinks
	send  func(*resend.SendEmailRequest) error
}

func NewResendEmailSender(apiKey string, from string, appBaseURL string) *ResendEmailSender {
	sender := &ResendEmailSender{From: from, links: newEmailLinks(appBaseURL)}
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return sender
	}
	client := resend.NewClient(apiKey)
	sender.send = func(request *resend.SendEmailRequest) error {
		_, err := client.Emails.Send(request)
		return err
	}
	return sender
}

func (s *ResendEmailSender) SendVerificationEmail(ctx context.Context, email, name, token string) error {
	content, err := s.links.verification(name, token)
	if err != nil {
		return err
	}
	return s.deliver(ctx, email, content)
}

func (s *ResendEmailSender) SendPasswordResetEmail(ctx context.Context, email, name, token string) error {
	content, err := s.links.passwordReset(name, token)
	if err != nil {
		return err
	}
	return s.deliver(ctx, email, content)
}

func (s *ResendEmailSender) deliver(ctx context.Context, to string, content emailContent) error {
	if s.send == nil {
		return ErrEmailNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.send(&resend.SendEmailRequest{
		From:    s.From,
		To:      []string{to},
		Subject: content.Subject,
		Html:    content.HTML,
		Text:    content.Text,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// LogEmailSender writes the message and its link to the log instead of
// sending it. Meant for local development.
type LogEmailSender struct {
	links  emailLinks
	logger logrus.FieldLogger
}

func NewLogEmailSender(appBaseURL string, logger logrus.FieldLogger) *LogEmailSender {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogEmailSender{links: newEmailLinks(appBaseURL), logger: logger.WithField("component", "mail")}
}

func (s *LogEmailSender) SendVerificationEmail(_ context.Context, email, name, token string) error {
	content, err := s.links.verification(name, token)
	if err != nil {
		return err
	}
	s.log(email, content, s.links.build(s.links.VerifyPath, token))
	return nil
}

func (s *LogEmailSender) SendPasswordResetEmail(_ context.Context, email, name, token string) error {
	content, err := s.links.passwordReset(name, token)
	if err != nil {
		return err
	}
	s.log(email, content, s.links.build(s.links.ResetPath, token))
	return nil
}

func (s *LogEmailSender) log(to string, content emailContent, link string) {
	s.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": content.Subject,
		"link":    link,
	}).Info("email not sent, mail driver is log")
}
