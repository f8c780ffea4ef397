package http

import (
	"net/http"

	"github.com/nightporter/staffgate/pkg/httpx"
	"github.com/nightporter/staffgate/pkg/jwtx"
)

// discoveryDocument is the RFC 8414 / OIDC discovery metadata.
type discoveryDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserInfoEndpoint                  string   `json:"userinfo_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	EndSessionEndpoint                string   `json:"end_session_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// DiscoveryHandler serves GET /.well-known/openid-configuration.
func DiscoveryHandler(issuer string) http.HandlerFunc {
	doc := discoveryDocument{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/connect/authorize",
		TokenEndpoint:                     issuer + "/connect/token",
		UserInfoEndpoint:                  issuer + "/connect/userinfo",
		JWKSURI:                           issuer + "/.well-known/jwks.json",
		IntrospectionEndpoint:             issuer + "/connect/introspect",
		RevocationEndpoint:                issuer + "/connect/revoke",
		EndSessionEndpoint:                issuer + "/connect/logout",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		ScopesSupported:                   []string{"openid", "profile", "email", "offline_access"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"EdDSA"},
		CodeChallengeMethodsSupported:     []string{"S256", "plain"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, doc)
	}
}

// JWKSHandler serves GET /.well-known/jwks.json with the active signing key.
func JWKSHandler(signer jwtx.Signer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, jwtx.JWKS{
			Keys: []jwtx.JWK{signer.PublicJWK()},
		})
	}
}
