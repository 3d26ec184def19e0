package service

import (
	"context"
	"fmt"

	"careerguide/internal/config"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

type SecretManagerService interface {
	GetSecret(ctx context.Context, name string) (string, error)
	Close() error
}

type secretManagerService struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerService(ctx context.Context, cfg *config.Config, opts ...option.ClientOption) (SecretManagerService, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set for the current environment")
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerService{
		client:    client,
		projectID: cfg.GCPProjectID,
	}, nil
}

// GetSecret returns the latest version of the named secret.
func (s *secretManagerService) GetSecret(ctx context.Context, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)

	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}

	return string(result.Payload.Data), nil
}

func (s *secretManagerService) Close() error {
	return s.client.Close()
}

// ResolveServiceToken returns the backend service token, reading it from
// Secret Manager when BACKEND_SERVICE_TOKEN_SECRET names a secret.
func ResolveServiceToken(ctx context.Context, cfg *config.Config, sm SecretManagerService) (string, error) {
	if cfg.BackendServiceTokenSM == "" {
		return cfg.BackendServiceToken, nil
	}
	if sm == nil {
		return "", fmt.Errorf("secret %s configured but Secret Manager is unavailable", cfg.BackendServiceTokenSM)
	}
	token, err := sm.GetSecret(ctx, cfg.BackendServiceTokenSM)
	if err != nil {
		return "", fmt.Errorf("read backend service token: %w", err)
	}
	return token, nil
}
