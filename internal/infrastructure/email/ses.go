// Package email delivers notification emails through Amazon SES, with a
// log-only mailer for environments where email is disabled.
package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/primar/rendiciones/internal/application/port"
)

// SESClient is the slice of the SES API the mailer uses
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer implements port.Mailer on Amazon SES
type SESMailer struct {
	client SESClient
	sender string
	logger *zap.Logger
}

// NewSESMailer creates a mailer using the default AWS credential chain
func NewSESMailer(ctx context.Context, region, sender string, logger *zap.Logger) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailer{
		client: ses.NewFromConfig(cfg),
		sender: sender,
		logger: logger,
	}, nil
}

// NewSESMailerWithClient creates a mailer with an injected client
func NewSESMailerWithClient(client SESClient, sender string, logger *zap.Logger) *SESMailer {
	return &SESMailer{
		client: client,
		sender: sender,
		logger: logger,
	}
}

// Send delivers one plain-text email
func (m *SESMailer) Send(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(m.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		m.logger.Error("failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Debug("email sent",
		zap.String("to", to),
		zap.String("message_id", aws.ToString(out.MessageId)))

	return nil
}

// LogMailer implements port.Mailer by logging instead of sending. Used when
// email delivery is disabled in configuration.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates the log-only mailer
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the would-be delivery
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.Info("email delivery disabled, logging instead",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// Verify interface compliance
var (
	_ port.Mailer = (*SESMailer)(nil)
	_ port.Mailer = (*LogMailer)(nil)
)
