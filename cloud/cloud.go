// Package cloud adapts the provider compute API. Every call authenticates
// with one credential's static keys; there is no shared account-wide client.
package cloud

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/servicequotas"
)

// Keys carries one credential's decrypted key material for the duration of
// a single call.
type Keys struct {
	AccessKeyID     string
	SecretAccessKey string
	ProxyURL        string
}

// LiveInstance is one provider-reported instance from an inventory listing.
type LiveInstance struct {
	ID           string
	State        string
	PublicIP     string
	InstanceType string
	LaunchTime   time.Time
}

// Service issues provider API calls. The zero value is not usable; use
// NewService.
type Service struct {
	apiTimeout time.Duration
}

// NewService returns a provider adapter with the given per-call transport
// timeout for short API operations.
func NewService(apiTimeout time.Duration) *Service {
	if apiTimeout <= 0 {
		apiTimeout = 30 * time.Second
	}
	return &Service{apiTimeout: apiTimeout}
}

// httpClient builds the transport for one credential, honoring its optional
// proxy address.
func httpClient(keys Keys, timeout time.Duration) (*http.Client, error) {
	client := &http.Client{Timeout: timeout}
	if keys.ProxyURL != "" {
		proxy, err := url.Parse(keys.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address: %w", err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}
	return client, nil
}

// ec2Client builds a regional EC2 client from one credential's keys.
func (s *Service) ec2Client(ctx context.Context, keys Keys, region string, timeout time.Duration) (*ec2.Client, error) {
	hc, err := httpClient(keys, timeout)
	if err != nil {
		return nil, err
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keys.AccessKeyID, keys.SecretAccessKey, "")),
		awsconfig.WithHTTPClient(hc),
	)
	if err != nil {
		return nil, err
	}
	return ec2.NewFromConfig(cfg), nil
}

// quotasClient builds a regional Service Quotas client from one credential.
func (s *Service) quotasClient(ctx context.Context, keys Keys, region string) (*servicequotas.Client, error) {
	hc, err := httpClient(keys, s.apiTimeout)
	if err != nil {
		return nil, err
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keys.AccessKeyID, keys.SecretAccessKey, "")),
		awsconfig.WithHTTPClient(hc),
	)
	if err != nil {
		return nil, err
	}
	return servicequotas.NewFromConfig(cfg), nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
