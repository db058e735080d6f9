package identity

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for gateway tokens.
// UserID is the internal numeric user id, never the external provider id;
// the token issuer is responsible for the mapping.
type Claims struct {
	jwt.RegisteredClaims

	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Handle      string `json:"handle,omitempty"`
}
