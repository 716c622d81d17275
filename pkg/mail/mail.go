package mail

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"edocs/backend/config"
)

// Mailer SMTP 邮件发送器
// SMTP 未配置时 Send 直接跳过并返回 nil
type Mailer struct {
	cfg    *config.MailConfig
	logger *zap.Logger
	send   func(m *gomail.Message) error
}

// NewMailer 创建邮件发送器
func NewMailer(cfg *config.MailConfig, logger *zap.Logger) *Mailer {
	mailer := &Mailer{cfg: cfg, logger: logger}
	mailer.send = func(m *gomail.Message) error {
		d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password)
		return d.DialAndSend(m)
	}
	return mailer
}

// Configured SMTP 关键配置是否齐全
func (m *Mailer) Configured() bool {
	return m.cfg.SMTPHost != "" && m.cfg.Username != "" && m.cfg.From != ""
}

// Send 发送 HTML 邮件
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !m.Configured() {
		m.logger.Debug("邮件配置缺失，跳过发送", zap.String("subject", subject))
		return nil
	}
	if strings.TrimSpace(to) == "" {
		m.logger.Warn("收件人为空，跳过发送", zap.String("subject", subject))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.send(msg); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	m.logger.Info("邮件已发送", zap.String("to", to), zap.String("subject", subject))
	return nil
}
