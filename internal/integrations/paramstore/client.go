package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// pathAPI is the part of *ssm.Client that loads parameter trees. The SDK
// paginator drives it directly.
type pathAPI interface {
	GetParametersByPath(ctx context.Context, in *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// Client loads runtime tunables stored under a Parameter Store path.
type Client struct {
	api pathAPI
}

func NewClient(api pathAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: nil ssm client")
	}
	return &Client{api: api}, nil
}

// GetParametersByPath returns every parameter directly under path, keyed by
// the name relative to path ("/app/config/max" under "/app/config" is "max").
// SecureString values are decrypted.
func (c *Client) GetParametersByPath(ctx context.Context, path string) (map[string]string, error) {
	if c.api == nil {
		return nil, errors.New("paramstore: client not initialized")
	}
	path = strings.TrimRight(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, errors.New("paramstore: path is required")
	}

	out := map[string]string{}
	p := ssm.NewGetParametersByPathPaginator(c.api, &ssm.GetParametersByPathInput{
		Path:           aws.String(path),
		WithDecryption: aws.Bool(true),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("paramstore: get parameters by path %q: %w", path, err)
		}
		for _, param := range page.Parameters {
			if param.Name == nil || param.Value == nil {
				return nil, errors.New("paramstore: parameter missing value")
			}
			name := strings.TrimPrefix(strings.TrimPrefix(*param.Name, path), "/")
			out[name] = *param.Value
		}
	}
	return out, nil
}
