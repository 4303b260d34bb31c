package sms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"

	"github.com/flowgraph/runtime/internal/communication"
)

// SNSProvider delivers by publishing directly to a phone number through
// AWS SNS. Credentials come from the default AWS chain; SNS has no
// per-message from number, so msg.From rides along as the sender id
// attribute carriers may display.
type SNSProvider struct {
	client *sns.SNS
}

func NewSNSProvider(region string) (*SNSProvider, error) {
	sess, err := session.NewSession(aws.NewConfig().WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("sms: sns session: %w", err)
	}
	return &SNSProvider{client: sns.New(sess)}, nil
}

func (p *SNSProvider) SendSMS(ctx context.Context, msg *communication.SMS) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	out, err := p.client.PublishWithContext(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(msg.To),
		Message:     aws.String(msg.Text),
		MessageAttributes: map[string]*sns.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.From),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("sms: sns: %w", err)
	}
	return aws.StringValue(out.MessageId), nil
}
