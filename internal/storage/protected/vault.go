package protected

import (
	"context"
	"errors"
	"fmt"
	"github.com/hashicorp/vault-client-go"
	"github.com/hashicorp/vault-client-go/schema"
	"sw360auth/internal/config"
	"sw360auth/internal/lib/extensions"
	"time"
)

// Keys read from the KV v2 secret
const (
	ClientSecretKey  = "client_secret"
	SessionSecretKey = "session_secret"
)

// Vault is a client instance to Hashicorp Vault secure storage for storing secrets
type Vault struct {
	Client *vault.Client
	conf   config.VaultConfig
}

// Secrets are the values the gateway keeps out of its config file
type Secrets struct {
	ClientSecret  string
	SessionSecret string
}

// NewVaultClient creates new instance of Vault client
// Uses the configured token, or logs in with AppRole when no token is given
func NewVaultClient(ctx context.Context, conf config.VaultConfig) (*Vault, error) {
	client, err := vault.New(
		vault.WithAddress(conf.Address),
		vault.WithRequestTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating new vault client instance: %w", err)
	}
	v := &Vault{Client: client, conf: conf}

	if conf.Token != "" {
		if err := client.SetToken(conf.Token); err != nil {
			return nil, fmt.Errorf("error while setting token: %w", err)
		}
		return v, nil
	}
	if err := v.AuthUser(ctx); err != nil {
		return nil, fmt.Errorf("error while approle login: %w", err)
	}
	return v, nil
}

// AuthUser authenticates the gateway as Vault client via AppRole
func (v *Vault) AuthUser(ctx context.Context) error {
	resp, err := v.Client.Auth.AppRoleLogin(
		ctx,
		schema.AppRoleLoginRequest{
			RoleId:   extensions.GetTextFromFile(v.conf.RoleIDPath),
			SecretId: extensions.GetTextFromFile(v.conf.SecretIDPath),
		})
	if err != nil {
		return err
	}
	if resp.Auth == nil {
		return errors.New("approle login returned no auth data")
	}
	return v.Client.SetToken(resp.Auth.ClientToken)
}

// Secrets reads client and session secrets, missing keys are returned empty
func (v *Vault) Secrets(ctx context.Context) (*Secrets, error) {
	resp, err := v.Client.Secrets.KvV2Read(ctx, v.conf.SecretPath, vault.WithMountPath(v.conf.MountPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s: %w", v.conf.SecretPath, err)
	}
	if resp == nil || resp.Data.Data == nil {
		return nil, errors.New("empty response from vault")
	}
	return &Secrets{
		ClientSecret:  stringValue(resp.Data.Data, ClientSecretKey),
		SessionSecret: stringValue(resp.Data.Data, SessionSecretKey),
	}, nil
}

// Apply overrides the config with the non-empty secrets
func (s *Secrets) Apply(cfg *config.Config) {
	if s.ClientSecret != "" {
		cfg.Backend.ClientSecret = s.ClientSecret
	}
	if s.SessionSecret != "" {
		cfg.Session.Secret = s.SessionSecret
	}
}

func stringValue(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
