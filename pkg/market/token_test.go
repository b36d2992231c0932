package market

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func mustTokenIssuer(test *testing.T, options ...PickupTokenOption) *PickupTokenIssuer {
	test.Helper()
	issuer, err := NewPickupTokenIssuer([]byte("pickup-test-key"), options...)
	if err != nil {
		test.Fatalf("token issuer init: %v", err)
	}
	return issuer
}

func TestPickupTokenRoundTrip(test *testing.T) {
	test.Parallel()
	issuer := mustTokenIssuer(test)
	customerID := mustCustomerID(test, "customer-1")
	paymentID := mustPaymentID(test, "payment-1")
	productID := mustProductID(test, "product-1")

	token, err := issuer.Issue(customerID, paymentID, productID)
	if err != nil {
		test.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		test.Fatalf("verify: %v", err)
	}
	if !claims.Matches(customerID, paymentID) {
		test.Fatalf("claims do not match issued identities: %+v", claims)
	}
	if claims.ProductID != productID.String() {
		test.Fatalf("expected product %s, got %s", productID, claims.ProductID)
	}
}

func TestPickupTokenExpiresAfterWindow(test *testing.T) {
	test.Parallel()
	currentTime := time.Now()
	issuer := mustTokenIssuer(test, WithPickupTokenClock(func() time.Time { return currentTime }))
	token, err := issuer.Issue(mustCustomerID(test, "customer-1"), mustPaymentID(test, "payment-1"), mustProductID(test, "product-1"))
	if err != nil {
		test.Fatalf("issue: %v", err)
	}

	currentTime = currentTime.Add(DefaultPickupTokenTTL + time.Second)
	_, err = issuer.Verify(token)
	if !errors.Is(err, ErrInvalidPickupToken) {
		test.Fatalf("expected ErrInvalidPickupToken after expiry, got %v", err)
	}
}

func TestPickupTokenRejectsTampering(test *testing.T) {
	test.Parallel()
	issuer := mustTokenIssuer(test)
	token, err := issuer.Issue(mustCustomerID(test, "customer-1"), mustPaymentID(test, "payment-1"), mustProductID(test, "product-1"))
	if err != nil {
		test.Fatalf("issue: %v", err)
	}
	tampered := token[:strings.LastIndex(token, ".")] + ".forged"
	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrInvalidPickupToken) {
		test.Fatalf("expected ErrInvalidPickupToken for tampered token, got %v", err)
	}
}

func TestPickupTokenRejectsOtherCustomer(test *testing.T) {
	test.Parallel()
	issuer := mustTokenIssuer(test)
	token, err := issuer.Issue(mustCustomerID(test, "customer-1"), mustPaymentID(test, "payment-1"), mustProductID(test, "product-1"))
	if err != nil {
		test.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		test.Fatalf("verify: %v", err)
	}
	if claims.Matches(mustCustomerID(test, "customer-2"), mustPaymentID(test, "payment-1")) {
		test.Fatalf("claims must not match a different customer")
	}
	if claims.Matches(mustCustomerID(test, "customer-1"), mustPaymentID(test, "payment-2")) {
		test.Fatalf("claims must not match a different payment")
	}
}

func TestNewPickupTokenIssuerRequiresKey(test *testing.T) {
	test.Parallel()
	if _, err := NewPickupTokenIssuer(nil); !errors.Is(err, ErrInvalidTokenSetup) {
		test.Fatalf("expected ErrInvalidTokenSetup, got %v", err)
	}
}
