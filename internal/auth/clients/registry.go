// Package clients loads the static client registry. Clients are declared in a
// YAML file checked in next to the deployment, not stored in the database;
// registering a client is a config change and a restart.
package clients

import (
	"fmt"
	"os"
	"slices"

	"github.com/nightporter/staffgate/internal/auth/policy"
	"github.com/nightporter/staffgate/pkg/cryptox"
	"gopkg.in/yaml.v3"
)

// Client is one registered OAuth2 client.
type Client struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// SecretHash is the Argon2id PHC hash of the client secret. Empty for
	// public clients, which must use PKCE instead.
	SecretHash string `yaml:"secret_hash"`

	RedirectURIs []string `yaml:"redirect_uris"`
	Scopes       []string `yaml:"scopes"`

	// Tokens holds the per-client policy overrides, merged over the
	// service defaults field by field.
	Tokens policy.Overrides `yaml:"tokens"`
}

// Confidential reports whether the client authenticates with a secret.
func (c Client) Confidential() bool { return c.SecretHash != "" }

// AllowsRedirectURI does an exact string match against the registered URIs.
// No prefix or wildcard matching.
func (c Client) AllowsRedirectURI(uri string) bool {
	return uri != "" && slices.Contains(c.RedirectURIs, uri)
}

// AllowsScopes reports whether every requested scope is registered for the client.
func (c Client) AllowsScopes(requested []string) bool {
	for _, s := range requested {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}
	return true
}

// Registry is the set of registered clients plus the service-wide policy
// defaults they merge over.
type Registry struct {
	Defaults policy.Options

	clients map[string]Client
}

type registryFile struct {
	Clients []Client `yaml:"clients"`
}

// New builds a registry from already parsed clients.
func New(defaults policy.Options, cs []Client) (*Registry, error) {
	m := make(map[string]Client, len(cs))
	for _, c := range cs {
		if c.ID == "" {
			return nil, fmt.Errorf("clients: client with empty id")
		}
		if _, dup := m[c.ID]; dup {
			return nil, fmt.Errorf("clients: duplicate client id %q", c.ID)
		}
		m[c.ID] = c
	}
	return &Registry{Defaults: defaults, clients: m}, nil
}

// LoadFile reads the YAML registry file.
func LoadFile(defaults policy.Options, path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clients: read %s: %w", path, err)
	}

	var f registryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("clients: parse %s: %w", path, err)
	}

	return New(defaults, f.Clients)
}

// Get returns the client with the given id.
func (r *Registry) Get(id string) (Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// Authenticate checks client credentials. Public clients pass with an empty
// secret; confidential clients must present the right one.
func (r *Registry) Authenticate(id, secret string) (Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return Client{}, fmt.Errorf("clients: unknown client %q", id)
	}
	if !c.Confidential() {
		if secret != "" {
			return Client{}, fmt.Errorf("clients: public client %q must not send a secret", id)
		}
		return c, nil
	}
	if err := cryptox.VerifyPassword(secret, c.SecretHash); err != nil {
		return Client{}, fmt.Errorf("clients: bad secret for %q", id)
	}
	return c, nil
}

// PolicyFor resolves the effective token policy for a client id. Unknown
// clients get the plain defaults; callers validate client existence earlier.
func (r *Registry) PolicyFor(id string) policy.Options {
	c, ok := r.clients[id]
	if !ok {
		return r.Defaults
	}
	return policy.Resolve(r.Defaults, c.Tokens)
}
