package domain

import "time"

// Revocation reasons recorded on refresh tokens.
const (
	RevocationReplaced      = "replaced"
	RevocationLogout        = "logout"
	RevocationRevokeAll     = "revoke_all"
	RevocationReuseDetected = "reuse detected"
)

// ClientContext carries the request metadata stamped onto issued refresh
// tokens for audit purposes.
type ClientContext struct {
	IP        string
	UserAgent string
}

// RefreshToken models the stored refresh token record. TokenFamily links all
// tokens descending from one login so that reuse of a rotated-out member
// revokes the whole chain.
type RefreshToken struct {
	ID               string
	IdentityID       string
	TokenHash        string // deterministic fingerprint (base64url SHA-256), unique
	TokenFamily      string // UUID shared across the rotation lineage
	ExpiresAt        time.Time
	Revoked          bool
	RevocationReason string
	RevokedAt        *time.Time
	ReplacedByHash   string // fingerprint of the token that superseded this one
	IP               string
	UserAgent        string
	CreatedAt        time.Time
}

// TokenPair is what token-issuing operations return: the short-lived access
// JWT and the opaque refresh token, handed out exactly once.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // always "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // seconds until the access token expires
}
