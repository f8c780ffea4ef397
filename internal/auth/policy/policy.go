// Package policy resolves per-client token issuance policy against the
// service-wide defaults. Overrides merge field by field, so a client can pin
// just its refresh lifetime and inherit everything else.
package policy

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport says where the refresh token is handed to the client.
type Transport string

const (
	TransportCookie Transport = "cookie"
	TransportBody   Transport = "body"
)

// Options is a fully resolved token policy.
type Options struct {
	AccessTokenTTL           time.Duration
	RefreshTokenTTL          time.Duration
	RotateRefreshTokens      bool
	RevokeDescendantsOnReuse bool
	RefreshTokenTransport    Transport
}

// Defaults returns the service-wide policy used when a client overrides nothing.
func Defaults() Options {
	return Options{
		AccessTokenTTL:           5 * time.Minute,
		RefreshTokenTTL:          30 * 24 * time.Hour,
		RotateRefreshTokens:      true,
		RevokeDescendantsOnReuse: true,
		RefreshTokenTransport:    TransportCookie,
	}
}

// Duration parses "5m" / "720h" style strings from YAML. yaml.v3 has no
// native time.Duration handling.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("policy: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Overrides are the nullable per-client fields from the client registry.
// A nil field falls back to the default.
type Overrides struct {
	AccessTokenTTL           *Duration  `yaml:"access_token_ttl"`
	RefreshTokenTTL          *Duration  `yaml:"refresh_token_ttl"`
	RotateRefreshTokens      *bool      `yaml:"rotate_refresh_tokens"`
	RevokeDescendantsOnReuse *bool      `yaml:"revoke_descendants_on_reuse"`
	RefreshTokenTransport    *Transport `yaml:"refresh_token_transport"`
}

// Resolve merges o over defaults, field by field.
func Resolve(defaults Options, o Overrides) Options {
	out := defaults
	if o.AccessTokenTTL != nil {
		out.AccessTokenTTL = time.Duration(*o.AccessTokenTTL)
	}
	if o.RefreshTokenTTL != nil {
		out.RefreshTokenTTL = time.Duration(*o.RefreshTokenTTL)
	}
	if o.RotateRefreshTokens != nil {
		out.RotateRefreshTokens = *o.RotateRefreshTokens
	}
	if o.RevokeDescendantsOnReuse != nil {
		out.RevokeDescendantsOnReuse = *o.RevokeDescendantsOnReuse
	}
	if o.RefreshTokenTransport != nil {
		out.RefreshTokenTransport = *o.RefreshTokenTransport
	}
	return out
}
