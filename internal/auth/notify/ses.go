package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESClient is the subset of the SES v2 API the notifier needs.
type SESClient interface {
	SendEmail(ctx context.Context, input *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier delivers codes as plain text emails through Amazon SES.
type SESNotifier struct {
	Client  SESClient
	From    string        // sender address, e.g. "Marketplace <no-reply@example.com>"
	CodeTTL time.Duration // lifetime quoted in the email body
}

func NewSESNotifier(cfg aws.Config, from string, codeTTL time.Duration) *SESNotifier {
	return &SESNotifier{
		Client:  sesv2.NewFromConfig(cfg),
		From:    from,
		CodeTTL: codeTTL,
	}
}

func (n *SESNotifier) SendVerificationEmail(ctx context.Context, recipient, displayName, code string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour email verification code is %s. It expires in %s.\n\nIf you did not create an account, you can ignore this message.\n",
		displayName, code, expiryText(n.CodeTTL),
	)
	return n.send(ctx, recipient, "Verify your email address", body)
}

func (n *SESNotifier) SendPasswordResetEmail(ctx context.Context, recipient, displayName, code string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour password reset code is %s. It expires in %s.\n\nIf you did not request a password reset, you can ignore this message.\n",
		displayName, code, expiryText(n.CodeTTL),
	)
	return n.send(ctx, recipient, "Reset your password", body)
}

func expiryText(ttl time.Duration) string {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

func (n *SESNotifier) send(ctx context.Context, recipient, subject, body string) error {
	_, err := n.Client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.From),
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	slog.InfoContext(ctx, "email dispatched", "recipient", recipient, "subject", subject)
	return nil
}
