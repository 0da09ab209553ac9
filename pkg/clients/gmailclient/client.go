package gmailclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jakechorley/blood-camps/internal/config"
	"github.com/jakechorley/blood-camps/pkg/utils"
)

// defaultEmailsPerMinute matches the send rate Gmail tolerates for a personal account
const defaultEmailsPerMinute = 20

// Client wraps the Gmail API service
type Client struct {
	service *gmail.Service
	limiter *rate.Limiter
}

// NewClient creates a new Gmail API client using OAuth2.
// emailsPerMinute caps the send rate; zero uses the default.
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, env string, emailsPerMinute float64, logger *zap.Logger) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := utils.GetTokenWithFlow(ctx, oauthConfig, env, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth token: %w", err)
	}

	httpClient := oauthConfig.Client(ctx, token)
	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &Client{
		service: service,
		limiter: newLimiter(emailsPerMinute),
	}, nil
}

func newLimiter(perMinute float64) *rate.Limiter {
	if perMinute <= 0 {
		perMinute = defaultEmailsPerMinute
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), 1)
}
