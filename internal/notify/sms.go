package notify

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type smsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSNotifier отправляет SMS через Amazon SNS на телефон владельца
type SMSNotifier struct {
	client smsPublisher
}

// NewSMSNotifier берёт учётные данные из стандартной цепочки AWS
func NewSMSNotifier(ctx context.Context, region string) (*SMSNotifier, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SMSNotifier{client: sns.NewFromConfig(cfg)}, nil
}

func (n *SMSNotifier) Notify(ctx context.Context, notice model.BookingNotice) error {
	if notice.Owner == nil || notice.Owner.Phone == "" {
		return nil
	}

	_, err := n.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(notice.Owner.Phone),
		Message:     aws.String(FormatText(notice)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish sms: %w", err)
	}
	return nil
}
