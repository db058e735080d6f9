package identity

import "context"

// Identity is the resolved profile of a gateway user: the internal numeric
// user id plus the display info cached on the connection at connect time.
type Identity struct {
	UserID      int64
	DisplayName string
	Handle      string
}

// Valid reports whether the identity carries a usable internal user id.
func (i Identity) Valid() bool {
	return i.UserID > 0
}

// Resolver maps an opaque handshake token to an internal identity.
//
// The production implementation is the JWT Manager in this package; an
// external identity provider can be swapped in behind the same contract.
// Any error (expired token, unknown user, provider outage) must terminate
// the connection being established.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}
