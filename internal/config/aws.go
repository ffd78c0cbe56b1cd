package config

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoOptions returns client options derived from the configuration.
func (c *Config) DynamoOptions() []func(*dynamodb.Options) {
	if c.DynamoEndpoint == "" {
		return nil
	}
	endpoint := c.DynamoEndpoint
	return []func(*dynamodb.Options){
		func(o *dynamodb.Options) { o.BaseEndpoint = aws.String(endpoint) },
	}
}
