package email

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/edustack/academy-api/internal/config"
)

// SESProvider sends through AWS SES v2.
type SESProvider struct {
	cfg      appconfig.EmailConfig
	client   *sesv2.Client
	from     string
	fromName string
}

// NewSES returns an uninitialized SES provider. The API client is built in
// Initialize so a misconfigured environment fails soft at bootstrap instead
// of at construction.
func NewSES(cfg appconfig.EmailConfig) *SESProvider {
	return &SESProvider{cfg: cfg, from: cfg.FromEmail, fromName: cfg.FromName}
}

// Name implements Provider.
func (p *SESProvider) Name() string { return "ses" }

// Initialize builds the SES client and verifies the account is reachable.
func (p *SESProvider) Initialize(ctx context.Context) error {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(p.cfg.Region),
	}
	if p.cfg.AccessKey != "" && p.cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.cfg.AccessKey, p.cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}
	p.client = sesv2.NewFromConfig(awsCfg)

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := p.client.GetAccount(probeCtx, &sesv2.GetAccountInput{}); err != nil {
		return fmt.Errorf("verifying SES account: %w", err)
	}
	return nil
}

// Send implements Provider.
func (p *SESProvider) Send(ctx context.Context, msg Message) (*Receipt, error) {
	from := p.from
	if p.fromName != "" {
		from = fmt.Sprintf("%s <%s>", p.fromName, p.from)
	}

	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML)}
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body:    body,
			},
		},
	}

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("sending via SES: %w", err)
	}

	return &Receipt{MessageID: aws.ToString(out.MessageId), Provider: p.Name()}, nil
}

// Probe implements Provider.
func (p *SESProvider) Probe(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("ses client not initialized")
	}
	_, err := p.client.GetAccount(ctx, &sesv2.GetAccountInput{})
	return err
}
