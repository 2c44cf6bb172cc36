package sns

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/civic-alerts/internal/config"
	"github.com/civic-alerts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.PublishOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestNewSender_Disabled(t *testing.T) {
	s, err := NewSender(&config.Config{SMSEnabled: false})
	require.NoError(t, err)
	assert.False(t, s.Enabled())
	assert.True(t, errors.Is(s.SendSMS(context.Background(), "+15550001111", "hi"), domain.ErrChannelUnavailable))
}

func TestSendSMS_Transactional(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		attr, ok := in.MessageAttributes["AWS.SNS.SMS.SMSType"]
		return aws.ToString(in.PhoneNumber) == "+15550001111" &&
			aws.ToString(in.Message) == "hello" &&
			ok && aws.ToString(attr.StringValue) == "Transactional"
	})).Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil)

	s := &sender{client: pub, enabled: true}
	require.NoError(t, s.SendSMS(context.Background(), "+15550001111", "hello"))
	pub.AssertExpectations(t)
}

func TestSendSMS_PublishError(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	s := &sender{client: pub, enabled: true}
	assert.ErrorContains(t, s.SendSMS(context.Background(), "+1", "x"), "sns publish")
}
