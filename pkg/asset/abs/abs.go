// Package abs resolves upload assets stored in an Azure Blob Storage container with a SAS connection string.
package abs

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"gocloud.dev/blob"
	"gocloud.dev/blob/azureblob"

	"github.com/keboola/go-netkit/pkg/asset"
)

const Provider = "azure"

//nolint:tagliatelle
type Credentials struct {
	SASConnectionString string `json:"SASConnectionString"`
}

type Params struct {
	Container   string      `json:"container"`
	Credentials Credentials `json:"absCredentials"`
}

// OpenBucket opens the container, requests are not retried.
// The transport is optional.
func OpenBucket(ctx context.Context, params Params, transport http.RoundTripper) (*blob.Bucket, error) {
	clientOpts := azcore.ClientOptions{
		Retry: policy.RetryOptions{MaxRetries: -1},
	}
	if transport != nil {
		clientOpts.Transport = &http.Client{Transport: transport}
	}

	client, err := container.NewClientFromConnectionString(
		params.Credentials.SASConnectionString,
		params.Container,
		&container.ClientOptions{ClientOptions: clientOpts},
	)
	if err != nil {
		return nil, fmt.Errorf(`cannot create client for container "%s": %w`, params.Container, err)
	}

	b, err := azureblob.OpenBucket(ctx, client, nil)
	if err != nil {
		return nil, fmt.Errorf(`cannot open container "%s": %w`, params.Container, err)
	}
	return b, nil
}

// NewResolver creates the asset.Resolver which reads keys from the container.
func NewResolver(ctx context.Context, params Params, transport http.RoundTripper) (asset.Resolver, *blob.Bucket, error) {
	b, err := OpenBucket(ctx, params, transport)
	if err != nil {
		return nil, nil, err
	}
	return asset.BucketResolver(b), b, nil
}
