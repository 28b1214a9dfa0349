package services

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
)

// Notifier delivers operator messages (sweep summaries).
type Notifier interface {
	Notify(ctx context.Context, subject, message string) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }

// Publisher is the part of the SNS client we use.
type Publisher interface {
	Publish(ctx context.Context, in *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

// SNSNotifier publishes to a single topic.
type SNSNotifier struct {
	sns      Publisher
	topicArn string
}

func NewSNSNotifier(ctx context.Context, region, topicArn string) (*SNSNotifier, error) {
	if topicArn == "" {
		return nil, errors.New("SNS_TOPIC_ARN not set")
	}
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSNotifier{sns: awssns.NewFromConfig(cfg), topicArn: topicArn}, nil
}

func NewSNSNotifierWithClient(p Publisher, topicArn string) *SNSNotifier {
	return &SNSNotifier{sns: p, topicArn: topicArn}
}

func (n *SNSNotifier) Notify(ctx context.Context, subject, message string) error {
	_, err := n.sns.Publish(ctx, &awssns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	return err
}
