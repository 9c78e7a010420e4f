// Package snowflake provides the Snowflake credential and connector blocks
// together with query helpers that delegate to the gosnowflake driver.
package snowflake

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/url"

	sf "github.com/snowflakedb/gosnowflake"
	"github.com/youmark/pkcs8"

	"github.com/PrefectHQ/prefect-snowflake/pkg/blocks"
)

// application is sent with every connection so the integration's usage is
// attributed in the Snowflake Partner Network portal.
const application = "Prefect_Snowflake_Collection"

// Authenticator modes accepted by Credentials. An empty authenticator means
// standard username/password login.
const (
	AuthSnowflake           = "snowflake"
	AuthOAuth               = "oauth"
	AuthExternalBrowser     = "externalbrowser"
	AuthOktaEndpoint        = "okta_endpoint"
	AuthUsernamePasswordMFA = "username_password_mfa"
)

// Credentials is the block used to manage authentication with Snowflake.
type Credentials struct {
	// Account is the Snowflake account identifier.
	Account string `json:"account" yaml:"account"`
	// User is the login name used to authenticate.
	User string `json:"user" yaml:"user"`
	// Password authenticates the user; ignored when a private key is set.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	// PrivateKey is a PEM-encoded RSA key for key-pair authentication.
	// PKCS#8 (encrypted or not) and PKCS#1 encodings are accepted.
	PrivateKey []byte `json:"private_key,omitempty" yaml:"private_key,omitempty"`
	// PrivateKeyPassphrase decrypts an encrypted PKCS#8 private key.
	PrivateKeyPassphrase string `json:"private_key_passphrase,omitempty" yaml:"private_key_passphrase,omitempty"`
	// Authenticator selects the login mode (oauth, externalbrowser,
	// okta_endpoint, username_password_mfa). Note that externalbrowser only
	// works where a browser is available.
	Authenticator string `json:"authenticator,omitempty" yaml:"authenticator,omitempty"`
	// OktaEndpoint is the Okta URL used when Authenticator is okta_endpoint.
	OktaEndpoint string `json:"okta_endpoint,omitempty" yaml:"okta_endpoint,omitempty"`
	// Token is the OAuth or JWT token used when Authenticator is oauth.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
	// Role is the default role to assume.
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
	// Autocommit toggles the session autocommit parameter when set.
	Autocommit *bool `json:"autocommit,omitempty" yaml:"autocommit,omitempty"`
}

func init() {
	blocks.Register(func() blocks.Block { return &Credentials{} })
}

// BlockType implements blocks.Block.
func (c *Credentials) BlockType() string { return "snowflake-credentials" }

// Validate implements blocks.Block. At least one authentication method must
// be configured.
func (c *Credentials) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("account must be provided")
	}
	if c.User == "" {
		return fmt.Errorf("user must be provided")
	}
	if c.Password == "" && len(c.PrivateKey) == 0 && c.Authenticator == "" && c.Token == "" {
		return fmt.Errorf("one of the authentication keys must be provided: password, private_key, authenticator, token")
	}
	if c.Authenticator == AuthOktaEndpoint && c.OktaEndpoint == "" {
		return fmt.Errorf("okta_endpoint must be provided when authenticator is %s", AuthOktaEndpoint)
	}
	if c.Authenticator == AuthOAuth && c.Token == "" {
		return fmt.Errorf("token must be provided when authenticator is %s", AuthOAuth)
	}
	return nil
}

// HasPrivateKey reports whether key-pair authentication is configured.
func (c *Credentials) HasPrivateKey() bool { return len(c.PrivateKey) > 0 }

// ResolvePrivateKey decodes the configured PEM private key into the RSA key
// the driver expects. Encrypted PKCS#8 keys are decrypted with the
// configured passphrase.
func (c *Credentials) ResolvePrivateKey() (*rsa.PrivateKey, error) {
	if !c.HasPrivateKey() {
		return nil, nil
	}

	block, _ := pem.Decode(c.PrivateKey)
	if block == nil {
		return nil, fmt.Errorf("private key is not valid PEM")
	}

	switch block.Type {
	case "ENCRYPTED PRIVATE KEY":
		key, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, []byte(c.PrivateKeyPassphrase))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt private key: %v", err)
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %v", err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not an RSA key")
		}
		return key, nil
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %v", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported private key PEM type: %s", block.Type)
	}
}

// authType maps the configured authenticator to the driver's auth mode and,
// for okta_endpoint, resolves the endpoint URL.
func (c *Credentials) authType() (sf.AuthType, *url.URL, error) {
	if c.HasPrivateKey() {
		return sf.AuthTypeJwt, nil, nil
	}

	switch c.Authenticator {
	case "", AuthSnowflake:
		return sf.AuthTypeSnowflake, nil, nil
	case AuthOAuth:
		return sf.AuthTypeOAuth, nil, nil
	case AuthExternalBrowser:
		return sf.AuthTypeExternalBrowser, nil, nil
	case AuthUsernamePasswordMFA:
		return sf.AuthTypeUsernamePasswordMFA, nil, nil
	case AuthOktaEndpoint:
		endpoint, err := url.Parse(c.OktaEndpoint)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid okta endpoint: %v", err)
		}
		return sf.AuthTypeOkta, endpoint, nil
	default:
		return 0, nil, fmt.Errorf("unsupported authenticator: %s", c.Authenticator)
	}
}
