package objectstore

import (
	"fmt"
	"strings"
)

// Step environment keys carrying MinIO credentials.
const (
	EnvAccessKeyID     = "MINIO_ACCESS_KEY_ID"
	EnvSecretAccessKey = "MINIO_SECRET_ACCESS_KEY"
	EnvSessionToken    = "MINIO_SESSION_TOKEN"
)

// WithEnvCredentials returns cfg with its credentials taken from env. The
// access key and secret are required, the session token is optional.
func (cfg Config) WithEnvCredentials(env map[string]string) (Config, error) {
	var missing []string
	for _, k := range []string{EnvAccessKeyID, EnvSecretAccessKey} {
		if env[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing object store credentials: %s", strings.Join(missing, ", "))
	}
	cfg.AccessKeyID = env[EnvAccessKeyID]
	cfg.SecretAccessKey = env[EnvSecretAccessKey]
	cfg.SessionToken = env[EnvSessionToken]
	return cfg, nil
}
