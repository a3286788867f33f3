package queue

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	cfg "github.com/srakestraw/gravyty-enablement-sub006/internal/config"
)

// NewSQSClient builds the SQS client from the same credential set the
// object client uses.
func NewSQSClient(ctx context.Context, conf *cfg.Config) (*sqs.Client, error) {
	if conf.QueueURL == "" {
		return nil, fmt.Errorf("INGEST_QUEUE_URL not set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.AwsRegion),
	}
	if conf.AwsAccessKey != "" && conf.AwsSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AwsAccessKey, conf.AwsSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg), nil
}
