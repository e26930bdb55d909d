// Package notification delivers outbound SMS messages such as sale bills.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// GatewayConfig holds Twilio credentials. Edge optionally pins requests to
// a Twilio edge location such as "sydney".
type GatewayConfig struct {
	Edge       string
	AccountSID string
	AuthToken  string
	From       string
}

// messageCreator is the part of the Twilio messages API used for billing.
type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// GatewaySender delivers messages through Twilio.
type GatewaySender struct {
	from     string
	messages messageCreator
}

func NewGatewaySender(cfg GatewayConfig) *GatewaySender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	if cfg.Edge != "" {
		client.SetEdge(cfg.Edge)
	}
	return &GatewaySender{from: cfg.From, messages: client.Api}
}

// SendSMS checks ctx before the call; the Twilio client does not take a
// context, so an in-flight request runs to its own HTTP timeout.
func (s *GatewaySender) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	if _, err := s.messages.CreateMessage(params); err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			return fmt.Errorf("sms gateway returned %d: %s", restErr.Status, restErr.Message)
		}
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no gateway is configured.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "sms").Logger()}
}

func (s *LogSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info().Str("to", maskNumber(to)).Int("length", len(body)).Msg("sms not delivered: no gateway configured")
	return nil
}

// maskNumber keeps the last four digits.
func maskNumber(n string) string {
	if len(n) <= 4 {
		return n
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}
