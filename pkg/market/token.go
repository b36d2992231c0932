package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultPickupTokenTTL is the validity window of an issued pickup token.
const DefaultPickupTokenTTL = 5 * time.Minute

const pickupTokenIssuer = "lastcall-pickup"

// PickupClaims binds a ready order to the customer entitled to redeem it.
type PickupClaims struct {
	PaymentID string `json:"pid"`
	ProductID string `json:"prd"`
	jwt.RegisteredClaims
}

// PickupTokenIssuer signs and verifies the short-lived pickup credential.
type PickupTokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
	nowFn      func() time.Time
}

// PickupTokenOption configures a PickupTokenIssuer.
type PickupTokenOption func(*PickupTokenIssuer)

// WithPickupTokenTTL overrides the token validity window.
func WithPickupTokenTTL(ttl time.Duration) PickupTokenOption {
	return func(issuer *PickupTokenIssuer) {
		if ttl > 0 {
			issuer.ttl = ttl
		}
	}
}

// WithPickupTokenClock overrides the clock, for tests.
func WithPickupTokenClock(now func() time.Time) PickupTokenOption {
	return func(issuer *PickupTokenIssuer) {
		if now != nil {
			issuer.nowFn = now
		}
	}
}

// NewPickupTokenIssuer wires a PickupTokenIssuer.
func NewPickupTokenIssuer(signingKey []byte, options ...PickupTokenOption) (*PickupTokenIssuer, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("%w: signing key is empty", ErrInvalidTokenSetup)
	}
	issuer := &PickupTokenIssuer{
		signingKey: signingKey,
		ttl:        DefaultPickupTokenTTL,
		nowFn:      time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(issuer)
		}
	}
	return issuer, nil
}

// Issue signs a token for the given customer, payment, and product.
func (issuer *PickupTokenIssuer) Issue(customerID CustomerID, paymentID PaymentID, productID ProductID) (string, error) {
	now := issuer.nowFn()
	claims := PickupClaims{
		PaymentID: paymentID.String(),
		ProductID: productID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    pickupTokenIssuer,
			Subject:   customerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(issuer.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(issuer.signingKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPickupToken, err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the bound identities.
func (issuer *PickupTokenIssuer) Verify(raw string) (PickupClaims, error) {
	claims := PickupClaims{}
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(token *jwt.Token) (interface{}, error) {
			return issuer.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(pickupTokenIssuer),
		jwt.WithTimeFunc(issuer.nowFn),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return PickupClaims{}, fmt.Errorf("%w: expired", ErrInvalidPickupToken)
		}
		return PickupClaims{}, fmt.Errorf("%w: %v", ErrInvalidPickupToken, err)
	}
	return claims, nil
}

// Matches reports whether the claims bind the given customer and payment.
func (claims PickupClaims) Matches(customerID CustomerID, paymentID PaymentID) bool {
	return claims.Subject == customerID.String() && claims.PaymentID == paymentID.String()
}
