//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
)

const testAPIKey = "integration-test-key"

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestClaimCoupon_NoAuth(t *testing.T) {
	resp := doPost(t, "/api/coupons/mch-001-welcome20/claims", claimRequest{CustomerID: "cust-noauth"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestClaimCoupon_InvalidKey(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupons/mch-001-welcome20/claims", claimRequest{CustomerID: "cust-badkey"}, "wrong-key")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestClaimCoupon_Success(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupons/mch-001-welcome20/claims", claimRequest{CustomerID: "cust-claim-1"}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	claim := decodeJSON[claimResponse](t, resp)
	if !uuidPattern.MatchString(claim.ClaimID) {
		t.Errorf("claim ID %q is not a valid UUID", claim.ClaimID)
	}
	if claim.CouponID != "mch-001-welcome20" {
		t.Errorf("coupon id: got %q, want %q", claim.CouponID, "mch-001-welcome20")
	}
	if claim.CustomerID != "cust-claim-1" {
		t.Errorf("customer id: got %q, want %q", claim.CustomerID, "cust-claim-1")
	}
}

func TestClaimCoupon_UnknownCoupon(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupons/no-such-coupon/claims", claimRequest{CustomerID: "cust-claim-2"}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestClaimCoupon_MissingCustomer(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupons/mch-001-welcome20/claims", claimRequest{}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestClaimCoupon_Expired(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupons/mch-002-expired/claims", claimRequest{CustomerID: "cust-claim-3"}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

// TestClaimCoupon_SupplyRace hammers a coupon with 5 total units from 40
// concurrent claimants: exactly 5 claims may succeed, the rest must get 409.
func TestClaimCoupon_SupplyRace(t *testing.T) {
	const (
		claimants = 40
		supply    = 5
	)

	var (
		succeeded atomic.Int32
		conflicts atomic.Int32
		others    atomic.Int32
		wg        sync.WaitGroup
	)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			resp := doPostWithAuth(t, "/api/coupons/mch-002-race5/claims",
				claimRequest{CustomerID: "cust-race"}, testAPIKey)
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				succeeded.Add(1)
			case http.StatusConflict:
				conflicts.Add(1)
			default:
				others.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := succeeded.Load(); got != supply {
		t.Errorf("successful claims: got %d, want exactly %d", got, supply)
	}
	if got := conflicts.Load(); got != claimants-supply {
		t.Errorf("conflict responses: got %d, want %d", got, claimants-supply)
	}
	if got := others.Load(); got != 0 {
		t.Errorf("unexpected response statuses: %d", got)
	}
}
