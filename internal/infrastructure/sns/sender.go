package sns

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/civic-alerts/internal/config"
	"github.com/civic-alerts/internal/domain"
	"github.com/civic-alerts/internal/infrastructure/awsconf"
)

// SMSSender sends SMS messages via AWS SNS.
type SMSSender interface {
	Enabled() bool
	SendSMS(ctx context.Context, to, message string) error
}

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type sender struct {
	client  publisher
	enabled bool
}

// NewSender returns a disabled sender when SMS_ENABLED is off; no AWS
// configuration is loaded in that case.
func NewSender(cfg *config.Config) (SMSSender, error) {
	if !cfg.SMSEnabled {
		return &sender{}, nil
	}
	awsCfg, err := awsconf.Load(context.Background(), cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &sender{client: sns.NewFromConfig(awsCfg, opts...), enabled: true}, nil
}

func (s *sender) Enabled() bool { return s.enabled }

func (s *sender) SendSMS(ctx context.Context, to, message string) error {
	if !s.enabled {
		return fmt.Errorf("sms disabled: %w", domain.ErrChannelUnavailable)
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
