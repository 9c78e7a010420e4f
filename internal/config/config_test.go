package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrefectHQ/prefect-snowflake/pkg/blocks"
)

const testConfig = `
snowflake:
  account: org-acct
  user: loader
  password: secret
  database: ANALYTICS
  warehouse: COMPUTE_WH
  schema: PUBLIC
source:
  type: postgres
  host: db.example.com
  port: 5432
  user: reader
  database: sales
blocks:
  type: memory
transfer:
  stage: LOAD_STAGE
  batch_size: 500
  format: parquet
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("from file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, testConfig))
		require.NoError(t, err)

		assert.Equal(t, "org-acct", cfg.Snowflake.Account)
		assert.Equal(t, "postgres", cfg.Source.Type)
		assert.Equal(t, "memory", cfg.Blocks.Type)
		assert.Equal(t, "LOAD_STAGE", cfg.Transfer.Stage)
		assert.Equal(t, int64(500), cfg.Transfer.BatchSize)
		assert.Equal(t, "parquet", cfg.Transfer.Format)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("SNOWFLAKE_ACCOUNT", "other-acct")
		t.Setenv("SNOWFLAKE_ROLE", "LOADER")

		cfg, err := Load(writeConfig(t, testConfig))
		require.NoError(t, err)
		assert.Equal(t, "other-acct", cfg.Snowflake.Account)
		assert.Equal(t, "LOADER", cfg.Snowflake.Role)
		assert.Equal(t, "loader", cfg.Snowflake.User)
	})

	t.Run("environment only", func(t *testing.T) {
		t.Setenv("SNOWFLAKE_ACCOUNT", "env-acct")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "env-acct", cfg.Snowflake.Account)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "snowflake: ["))
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestConnector(t *testing.T) {
	t.Run("password auth", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, testConfig))
		require.NoError(t, err)

		connector, err := cfg.Connector()
		require.NoError(t, err)
		assert.Equal(t, "ANALYTICS", connector.Database)
		assert.Equal(t, "secret", connector.Credentials.Password)
	})

	t.Run("private key read from file", func(t *testing.T) {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		der, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)

		keyPath := filepath.Join(t.TempDir(), "rsa_key.p8")
		require.NoError(t, os.WriteFile(keyPath,
			pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))

		cfg, err := Load(writeConfig(t, testConfig))
		require.NoError(t, err)
		cfg.Snowflake.Password = ""
		cfg.Snowflake.PrivateKeyPath = keyPath

		connector, err := cfg.Connector()
		require.NoError(t, err)
		assert.True(t, connector.Credentials.HasPrivateKey())

		resolved, err := connector.Credentials.ResolvePrivateKey()
		require.NoError(t, err)
		assert.True(t, key.Equal(resolved))
	})

	t.Run("missing private key file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, testConfig))
		require.NoError(t, err)
		cfg.Snowflake.PrivateKeyPath = filepath.Join(t.TempDir(), "nope.p8")

		_, err = cfg.Connector()
		assert.ErrorContains(t, err, "failed to read private key file")
	})

	t.Run("invalid settings", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, testConfig))
		require.NoError(t, err)
		cfg.Snowflake.Warehouse = ""

		_, err = cfg.Connector()
		assert.ErrorContains(t, err, "warehouse must be provided")
	})
}

func TestStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := &Config{Blocks: Blocks{Type: "memory"}}
		store, err := cfg.Store()
		require.NoError(t, err)
		assert.IsType(t, &blocks.MemoryStore{}, store)
	})

	t.Run("file with explicit dir", func(t *testing.T) {
		cfg := &Config{Blocks: Blocks{Type: "file", Dir: t.TempDir()}}
		store, err := cfg.Store()
		require.NoError(t, err)
		assert.IsType(t, &blocks.FileStore{}, store)
	})

	t.Run("unsupported type", func(t *testing.T) {
		cfg := &Config{Blocks: Blocks{Type: "redis"}}
		_, err := cfg.Store()
		assert.ErrorContains(t, err, "unsupported block store type: redis")
	})
}
