// Package config loads process configuration from the environment once at
// startup. Values are passed down as explicit dependencies, never read ad
// hoc inside handlers.
package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Listen string `env:"LISTEN,default=0.0.0.0:8080"`

	// The one repository this process serves.
	RepoOwner string `env:"REPO_OWNER,required"`
	RepoName  string `env:"REPO_NAME,required"`

	APIBaseURL string `env:"GITHUB_API_URL,default=https://api.github.com"`

	// Static bearer credential. Leave empty to use GitHub App auth instead.
	Token string `env:"GITHUB_TOKEN"`

	// GitHub App credentials. All three are needed to activate App auth;
	// the installation id may be 0 to auto-discover a single installation.
	AppID          int64  `env:"GITHUB_APP_ID"`
	InstallationID int64  `env:"GITHUB_INSTALLATION_ID"`
	PrivateKeyPath string `env:"GITHUB_PRIVATE_KEY_PATH"`
}

func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// UseApp reports whether the App credential path is configured.
func (c Config) UseApp() bool {
	return c.AppID != 0 && c.PrivateKeyPath != ""
}
