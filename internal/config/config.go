// Package config loads the CLI configuration from a YAML file with
// environment variable overrides for the Snowflake settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/PrefectHQ/prefect-snowflake/pkg/blocks"
	"github.com/PrefectHQ/prefect-snowflake/pkg/snowflake"
	"github.com/PrefectHQ/prefect-snowflake/pkg/warehouse"
)

// Snowflake holds the connector settings. The private key is referenced by
// file path so the config file itself stays free of key material.
type Snowflake struct {
	Account              string `yaml:"account"`
	User                 string `yaml:"user"`
	Password             string `yaml:"password,omitempty"`
	PrivateKeyPath       string `yaml:"private_key_path,omitempty"`
	PrivateKeyPassphrase string `yaml:"private_key_passphrase,omitempty"`
	Authenticator        string `yaml:"authenticator,omitempty"`
	OktaEndpoint         string `yaml:"okta_endpoint,omitempty"`
	Token                string `yaml:"token,omitempty"`
	Role                 string `yaml:"role,omitempty"`
	Database             string `yaml:"database"`
	Warehouse            string `yaml:"warehouse"`
	Schema               string `yaml:"schema"`
}

// Blocks selects the block store backend.
type Blocks struct {
	// Type is memory, file, or kubernetes. Defaults to file.
	Type string `yaml:"type,omitempty"`
	// Dir is the file store directory.
	Dir string `yaml:"dir,omitempty"`
	// Namespace is the Kubernetes store namespace.
	Namespace string `yaml:"namespace,omitempty"`
}

// Transfer holds the transfer pipeline defaults.
type Transfer struct {
	Stage     string `yaml:"stage,omitempty"`
	BatchSize int64  `yaml:"batch_size,omitempty"`
	Format    string `yaml:"format,omitempty"`
	SpoolDir  string `yaml:"spool_dir,omitempty"`
}

// Config is the top-level CLI configuration.
type Config struct {
	Snowflake Snowflake        `yaml:"snowflake"`
	Source    warehouse.Config `yaml:"source"`
	Blocks    Blocks           `yaml:"blocks"`
	Transfer  Transfer         `yaml:"transfer"`
}

// Load reads the config file at path, then applies SNOWFLAKE_* environment
// overrides. An empty path skips the file and uses the environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %v", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"SNOWFLAKE_ACCOUNT":                &c.Snowflake.Account,
		"SNOWFLAKE_USER":                   &c.Snowflake.User,
		"SNOWFLAKE_PASSWORD":               &c.Snowflake.Password,
		"SNOWFLAKE_PRIVATE_KEY_PATH":       &c.Snowflake.PrivateKeyPath,
		"SNOWFLAKE_PRIVATE_KEY_PASSPHRASE": &c.Snowflake.PrivateKeyPassphrase,
		"SNOWFLAKE_AUTHENTICATOR":          &c.Snowflake.Authenticator,
		"SNOWFLAKE_OKTA_ENDPOINT":          &c.Snowflake.OktaEndpoint,
		"SNOWFLAKE_TOKEN":                  &c.Snowflake.Token,
		"SNOWFLAKE_ROLE":                   &c.Snowflake.Role,
		"SNOWFLAKE_DATABASE":               &c.Snowflake.Database,
		"SNOWFLAKE_WAREHOUSE":              &c.Snowflake.Warehouse,
		"SNOWFLAKE_SCHEMA":                 &c.Snowflake.Schema,
	}

	for key, field := range overrides {
		if value := os.Getenv(key); value != "" {
			*field = value
		}
	}
}

// Connector builds the Snowflake connector block from the configuration,
// reading the private key file when one is configured.
func (c *Config) Connector() (*snowflake.Connector, error) {
	creds := snowflake.Credentials{
		Account:              c.Snowflake.Account,
		User:                 c.Snowflake.User,
		Password:             c.Snowflake.Password,
		PrivateKeyPassphrase: c.Snowflake.PrivateKeyPassphrase,
		Authenticator:        c.Snowflake.Authenticator,
		OktaEndpoint:         c.Snowflake.OktaEndpoint,
		Token:                c.Snowflake.Token,
		Role:                 c.Snowflake.Role,
	}

	if c.Snowflake.PrivateKeyPath != "" {
		key, err := os.ReadFile(c.Snowflake.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key file: %v", err)
		}
		creds.PrivateKey = key
	}

	connector := &snowflake.Connector{
		Database:    c.Snowflake.Database,
		Warehouse:   c.Snowflake.Warehouse,
		Schema:      c.Snowflake.Schema,
		Credentials: creds,
	}

	if err := connector.Validate(); err != nil {
		return nil, err
	}
	return connector, nil
}

// Store builds the configured block store.
func (c *Config) Store() (blocks.Store, error) {
	switch c.Blocks.Type {
	case "", "file":
		dir := c.Blocks.Dir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to resolve home directory: %v", err)
			}
			dir = filepath.Join(home, ".prefect-snowflake", "blocks")
		}
		return blocks.NewFileStore(dir)
	case "memory":
		return blocks.NewMemoryStore(), nil
	case "kubernetes":
		namespace := c.Blocks.Namespace
		if namespace == "" {
			namespace = "default"
		}
		return blocks.NewKubernetesStore(namespace)
	default:
		return nil, fmt.Errorf("unsupported block store type: %s", c.Blocks.Type)
	}
}
