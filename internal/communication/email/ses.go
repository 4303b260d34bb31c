package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"

	"github.com/flowgraph/runtime/internal/communication"
)

// SESProvider delivers through AWS SES. Credentials come from the
// default AWS chain (environment, shared config, instance role); only
// the region is configured here.
type SESProvider struct {
	client *ses.SES
}

func NewSESProvider(region string) (*SESProvider, error) {
	sess, err := session.NewSession(aws.NewConfig().WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("email: ses session: %w", err)
	}
	return &SESProvider{client: ses.New(sess)}, nil
}

func (p *SESProvider) SendEmail(ctx context.Context, msg *communication.Email) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	utf8 := func(s string) *ses.Content {
		return &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(s)}
	}
	out, err := p.client.SendEmailWithContext(ctx, &ses.SendEmailInput{
		Source:      aws.String(msg.From),
		Destination: &ses.Destination{ToAddresses: aws.StringSlice(msg.To)},
		Message: &ses.Message{
			Subject: utf8(msg.Subject),
			Body:    &ses.Body{Text: utf8(msg.Text)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("email: ses: %w", err)
	}
	return aws.StringValue(out.MessageId), nil
}
