package vault

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

// SecretManager reads deployment secrets from HashiCorp Vault. It is
// optional: deployments without Vault configure secrets directly.
type SecretManager struct {
	client *api.Client
}

func NewSecretManager(address, token string) (*SecretManager, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}

	client.SetToken(token)

	return &SecretManager{client: client}, nil
}

// GetJWTVerificationKey returns the HMAC key used to verify client auth
// tokens, from secret/data/jwt.
func (sm *SecretManager) GetJWTVerificationKey() (string, error) {
	return sm.readField("secret/data/jwt", "verification_key")
}

// GetRedisPassword returns the cache password, from secret/data/redis.
func (sm *SecretManager) GetRedisPassword() (string, error) {
	return sm.readField("secret/data/redis", "password")
}

func (sm *SecretManager) readField(path, field string) (string, error) {
	secret, err := sm.client.Logical().Read(path)
	if err != nil {
		return "", err
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault: no secret at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("vault: unexpected secret shape at %s", path)
	}
	value, ok := data[field].(string)
	if !ok {
		return "", fmt.Errorf("vault: field %s missing at %s", field, path)
	}
	return value, nil
}
