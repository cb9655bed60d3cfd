// Package mailer 邮件投递（Notifier 协作者）
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"accountguard/internal/config"
)

// 模板ID
const (
	TemplateEmailVerification = "email_verification"
	TemplatePasswordReset     = "password_reset"
)

// Notifier 向收件人投递模板邮件
type Notifier interface {
	Send(ctx context.Context, recipient, templateID string, data map[string]any) error
}

// New 按配置创建 Notifier
func New(cfg *config.MailConfig) (Notifier, error) {
	switch cfg.Driver {
	case "smtp":
		return NewSMTP(cfg), nil
	case "log", "":
		return LogNotifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported mail driver: %s", cfg.Driver)
	}
}

// SMTP 基于 gomail 的 SMTP 投递
type SMTP struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTP 创建 SMTP Notifier
func NewSMTP(cfg *config.MailConfig) *SMTP {
	return &SMTP{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send 渲染模板并发送
// gomail 不支持 context，这里只在发送前检查取消
func (s *SMTP) Send(ctx context.Context, recipient, templateID string, data map[string]any) error {
	subject, body, err := Render(templateID, data)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s mail: %w", templateID, err)
	}
	return nil
}

// LogNotifier 只记录日志，用于本地开发
type LogNotifier struct{}

// Send 渲染模板后写日志（不输出链接中的 token）
func (LogNotifier) Send(_ context.Context, recipient, templateID string, data map[string]any) error {
	subject, _, err := Render(templateID, data)
	if err != nil {
		return err
	}
	log.Info().
		Str("recipient", recipient).
		Str("template", templateID).
		Str("subject", subject).
		Msg("mail delivered to log")
	return nil
}

type mailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]mailTemplate{
	TemplateEmailVerification: {
		subject: "Confirm your email address",
		body: template.Must(template.New(TemplateEmailVerification).Parse(`<p>Hi {{.username}},</p>
<p>Please confirm your email address by opening the link below:</p>
<p><a href="{{.link}}">{{.link}}</a></p>
<p>This link expires in {{.expires_in}}. If you did not sign up, you can ignore this email.</p>`)),
	},
	TemplatePasswordReset: {
		subject: "Reset your password",
		body: template.Must(template.New(TemplatePasswordReset).Parse(`<p>Hi {{.username}},</p>
<p>We received a request to reset your password. Open the link below to choose a new one:</p>
<p><a href="{{.link}}">{{.link}}</a></p>
<p>This link expires in {{.expires_in}}. If you did not request a reset, your account is still secure.</p>`)),
	},
}

// Render 渲染模板，返回主题与 HTML 正文
func Render(templateID string, data map[string]any) (string, string, error) {
	tpl, ok := templates[templateID]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template: %s", templateID)
	}
	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", templateID, err)
	}
	return tpl.subject, buf.String(), nil
}
