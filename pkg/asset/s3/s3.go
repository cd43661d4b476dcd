// Package s3 resolves upload assets stored in an AWS S3 bucket with static credentials.
package s3

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gocloud.dev/blob"
	"gocloud.dev/blob/s3blob"

	"github.com/keboola/go-netkit/pkg/asset"
)

const Provider = "aws"

//nolint:tagliatelle
type Credentials struct {
	AccessKeyID     string `json:"AccessKeyId"`
	SecretAccessKey string `json:"SecretAccessKey"`
	SessionToken    string `json:"SessionToken"`
}

type Params struct {
	Bucket      string      `json:"bucket"`
	Region      string      `json:"region"`
	Credentials Credentials `json:"credentials"`
}

// OpenBucket opens the bucket, requests are not retried.
// The transport is optional.
func OpenBucket(ctx context.Context, params Params, transport http.RoundTripper) (*blob.Bucket, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				params.Credentials.AccessKeyID,
				params.Credentials.SecretAccessKey,
				params.Credentials.SessionToken,
			),
		),
		config.WithRegion(params.Region),
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if transport != nil {
		opts = append(opts, config.WithHTTPClient(&http.Client{Transport: transport}))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg)
	b, err := s3blob.OpenBucketV2(ctx, client, params.Bucket, nil)
	if err != nil {
		return nil, fmt.Errorf(`cannot open bucket "%s": %w`, params.Bucket, err)
	}
	return b, nil
}

// NewResolver creates the asset.Resolver which reads keys from the bucket.
func NewResolver(ctx context.Context, params Params, transport http.RoundTripper) (asset.Resolver, *blob.Bucket, error) {
	b, err := OpenBucket(ctx, params, transport)
	if err != nil {
		return nil, nil, err
	}
	return asset.BucketResolver(b), b, nil
}
