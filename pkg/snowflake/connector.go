package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	sf "github.com/snowflakedb/gosnowflake"

	"github.com/PrefectHQ/prefect-snowflake/pkg/blocks"
)

// Connector is the block used to manage connections with Snowflake. It holds
// the target database, warehouse and schema together with the credentials,
// and lazily opens a pooled database handle that is reused across calls.
type Connector struct {
	// Database is the name of the default database to use.
	Database string `json:"database" yaml:"database"`
	// Warehouse is the name of the default warehouse to use.
	Warehouse string `json:"warehouse" yaml:"warehouse"`
	// Schema is the name of the default schema to use.
	Schema string `json:"schema" yaml:"schema"`
	// Credentials authenticate the connection.
	Credentials Credentials `json:"credentials" yaml:"credentials"`

	// MaxOpenConns bounds the connection pool; zero keeps the driver default.
	MaxOpenConns int `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	// MaxIdleConns bounds idle pooled connections; zero keeps the default.
	MaxIdleConns int `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`

	mu sync.Mutex
	db *sql.DB
}

func init() {
	blocks.Register(func() blocks.Block { return &Connector{} })
}

// BlockType implements blocks.Block.
func (c *Connector) BlockType() string { return "snowflake-connector" }

// Validate implements blocks.Block.
func (c *Connector) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database must be provided")
	}
	if c.Warehouse == "" {
		return fmt.Errorf("warehouse must be provided")
	}
	if c.Schema == "" {
		return fmt.Errorf("schema must be provided")
	}
	return c.Credentials.Validate()
}

// ConnectParams assembles the driver configuration from the connector and
// credential fields. A private key takes precedence over a password, and the
// application tag is always set.
func (c *Connector) ConnectParams() (*sf.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg := &sf.Config{
		Account:     c.Credentials.Account,
		User:        c.Credentials.User,
		Database:    c.Database,
		Warehouse:   c.Warehouse,
		Schema:      c.Schema,
		Role:        c.Credentials.Role,
		Application: application,
	}

	authType, oktaURL, err := c.Credentials.authType()
	if err != nil {
		return nil, err
	}
	cfg.Authenticator = authType
	cfg.OktaURL = oktaURL
	cfg.Token = c.Credentials.Token

	if c.Credentials.HasPrivateKey() {
		key, err := c.Credentials.ResolvePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.PrivateKey = key
	} else {
		cfg.Password = c.Credentials.Password
	}

	if c.Credentials.Autocommit != nil {
		autocommit := strconv.FormatBool(*c.Credentials.Autocommit)
		cfg.Params = map[string]*string{"autocommit": &autocommit}
	}

	return cfg, nil
}

// DSN renders the connect params as a driver connection string.
func (c *Connector) DSN() (string, error) {
	cfg, err := c.ConnectParams()
	if err != nil {
		return "", err
	}

	dsn, err := sf.DSN(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to create DSN: %v", err)
	}
	return dsn, nil
}

// Connect opens the pooled database handle and verifies it with a ping.
// Subsequent calls reuse the existing pool.
func (c *Connector) Connect(ctx context.Context) error {
	_, err := c.DB(ctx)
	return err
}

// DB returns the pooled database handle, opening it on first use.
func (c *Connector) DB(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	dsn, err := c.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	c.db = db
	return c.db, nil
}

// Ping verifies the connection, opening it if necessary.
func (c *Connector) Ping(ctx context.Context) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close releases the connection pool. The connector can be reconnected
// afterwards.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
