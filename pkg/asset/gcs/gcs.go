// Package gcs resolves upload assets stored in a Google Cloud Storage bucket with an access token.
package gcs

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"gocloud.dev/blob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/gcp"
	"golang.org/x/oauth2"

	"github.com/keboola/go-netkit/pkg/asset"
)

const Provider = "gcp"

//nolint:tagliatelle
type Credentials struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Params struct {
	Bucket      string      `json:"bucket"`
	Credentials Credentials `json:"credentials"`
}

// OpenBucket opens the bucket, requests are not retried.
// The transport is optional.
func OpenBucket(ctx context.Context, params Params, transport http.RoundTripper) (*blob.Bucket, error) {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: params.Credentials.AccessToken,
		TokenType:   params.Credentials.TokenType,
	})

	if transport == nil {
		transport = gcp.DefaultTransport()
	}
	client, err := gcp.NewHTTPClient(transport, tokenSource)
	if err != nil {
		return nil, err
	}
	b, err := gcsblob.OpenBucket(ctx, client, params.Bucket, nil)
	if err != nil {
		return nil, fmt.Errorf(`cannot open bucket "%s": %w`, params.Bucket, err)
	}

	var gcsClient *storage.Client
	if b.As(&gcsClient) {
		gcsClient.SetRetry(storage.WithPolicy(storage.RetryNever))
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
