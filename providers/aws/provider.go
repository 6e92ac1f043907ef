// Package aws wires the SDK clients the reconcilers depend on. Credentials
// come from the default chain (environment, shared config, instance roles).
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Clients bundles the service clients for one region.
type Clients struct {
	Region string
	Lambda *lambda.Client
	SQS    *sqs.Client
	STS    *sts.Client
	Events *eventbridge.Client
}

// New builds the client bundle. An empty region falls back to whatever the
// default config chain resolves.
func New(ctx context.Context, region string) (*Clients, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Clients{
		Region: cfg.Region,
		Lambda: lambda.NewFromConfig(cfg),
		SQS:    sqs.NewFromConfig(cfg),
		STS:    sts.NewFromConfig(cfg),
		Events: eventbridge.NewFromConfig(cfg),
	}, nil
}

// AccountID resolves the calling account via STS.
func (c *Clients) AccountID(ctx context.Context) (string, error) {
	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("resolving caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}
