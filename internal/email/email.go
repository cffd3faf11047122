// Package email delivers transactional mail for ownership changes.
package email

import (
	"context"
	"fmt"

	"leaddesk_backend/platform/config"
)

type Sender interface {
	SendLeadReassignedEmail(ctx context.Context, toEmail, ownerName, leadName, reason string) error
	SendEscalationNoticeEmail(ctx context.Context, toEmail, supervisorName, leadName string) error
}

// NewSender builds the configured Sender. When email delivery is disabled a
// NoopSender is returned so callers never branch on configuration.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	if cfg.GetSMTPHost() == "" {
		return nil, fmt.Errorf("smtp host not configured")
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}

// NoopSender is used when EMAIL_ENABLED is off or SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendLeadReassignedEmail(ctx context.Context, toEmail, ownerName, leadName, reason string) error {
	return nil
}

func (NoopSender) SendEscalationNoticeEmail(ctx context.Context, toEmail, supervisorName, leadName string) error {
	return nil
}
