package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SendEmailAPI is the slice of the SES v2 client the mailer needs
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends pin codes through Amazon SES
type SESMailer struct {
	client SendEmailAPI
	from   string
}

// NewSESMailer loads the default AWS configuration and sends from auth@sender
func NewSESMailer(ctx context.Context, sender string) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewSESMailerWithClient(sesv2.NewFromConfig(cfg), sender), nil
}

// NewSESMailerWithClient wires an existing SES client
func NewSESMailerWithClient(client SendEmailAPI, sender string) *SESMailer {
	return &SESMailer{
		client: client,
		from:   fmt.Sprintf("ZeroTurbo <auth@%s>", sender),
	}
}

// SendCode emails the pin code to the given address
func (m *SESMailer) SendCode(ctx context.Context, email string, code string) error {
	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String("ZeroTurbo Pin Code: " + code)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String("Your pin code is <strong>" + code + "</strong>")},
					Text: &types.Content{Data: aws.String("Your pin code is " + code)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send pin code: %w", err)
	}
	return nil
}
