// Package sms implements communication.SMSProvider over Twilio, AWS
// SNS, and MessageBird. The registry picks one by the node's provider
// config field.
package sms

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/flowgraph/runtime/internal/communication"
)

// TwilioProvider delivers through Twilio's messages API.
type TwilioProvider struct {
	client *twilio.RestClient
}

func NewTwilioProvider(accountSID, authToken string) *TwilioProvider {
	return &TwilioProvider{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
	}
}

func (p *TwilioProvider) SendSMS(ctx context.Context, msg *communication.SMS) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(msg.From)
	params.SetTo(msg.To)
	params.SetBody(msg.Text)

	out, err := p.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("sms: twilio: %w", err)
	}
	if out.Sid == nil {
		return "", nil
	}
	return *out.Sid, nil
}
