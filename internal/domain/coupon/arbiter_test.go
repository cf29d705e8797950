package coupon

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository whose ClaimOne mirrors the database
// contract: check and increment under one lock.
type memRepo struct {
	mu      sync.Mutex
	coupons map[string]*Coupon
	claims  map[string]*Claim
	nextID  int
}

func newMemRepo(coupons ...*Coupon) *memRepo {
	m := &memRepo{
		coupons: make(map[string]*Coupon),
		claims:  make(map[string]*Claim),
	}
	for _, c := range coupons {
		m.coupons[c.ID] = c
	}
	return m
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) ClaimOne(_ context.Context, couponID, customerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.coupons[couponID]
	if !ok {
		return "", ErrNotFound
	}
	if c.ValidUntil != nil && time.Now().After(*c.ValidUntil) {
		return "", ErrExpired
	}
	if c.ClaimedQty >= c.TotalQty {
		return "", ErrExhausted
	}
	c.ClaimedQty++
	m.nextID++
	id := fmt.Sprintf("claim-%d", m.nextID)
	m.claims[id] = &Claim{ID: id, CouponID: couponID, CustomerID: customerID}
	return id, nil
}

func TestArbiter_Claim(t *testing.T) {
	coupon := &Coupon{
		ID:         "c1",
		MerchantID: "m1",
		Code:       "SAVE50",
		Discount:   decimal.NewFromInt(50),
		TotalQty:   2,
	}

	repo := newMemRepo(coupon)
	arb := NewArbiter(repo)

	id1, err := arb.Claim(context.Background(), "c1", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, id1)

	id2, err := arb.Claim(context.Background(), "c1", "bob")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	// Supply of 2 is gone.
	_, err = arb.Claim(context.Background(), "c1", "carol")
	require.ErrorIs(t, err, ErrExhausted)

	got, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ClaimedQty)
	assert.Equal(t, 0, got.Remaining())
}

func TestArbiter_Claim_Rejections(t *testing.T) {
	repo := newMemRepo(&Coupon{ID: "c1", TotalQty: 1})
	arb := NewArbiter(repo)

	_, err := arb.Claim(context.Background(), "missing", "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = arb.Claim(context.Background(), "", "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = arb.Claim(context.Background(), "c1", "")
	assert.ErrorIs(t, err, ErrEmptyCustomer)

	// Rejections must not consume supply.
	got, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.ClaimedQty)
}

func TestArbiter_Claim_Expired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	repo := newMemRepo(&Coupon{ID: "c1", TotalQty: 5, ValidUntil: &past})
	arb := NewArbiter(repo)

	_, err := arb.Claim(context.Background(), "c1", "alice")
	assert.ErrorIs(t, err, ErrExpired)
}

// Racing far more claimants than remaining supply must hand out exactly the
// remaining capacity: no overselling, no lost claims.
func TestArbiter_Claim_ConcurrentNoOverselling(t *testing.T) {
	const (
		capacity  = 25
		claimants = 200
	)

	repo := newMemRepo(&Coupon{ID: "c1", Discount: decimal.NewFromInt(5), TotalQty: capacity})
	arb := NewArbiter(repo)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []string
		rejected  int
	)

	for i := range claimants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimID, err := arb.Claim(context.Background(), "c1", fmt.Sprintf("cust-%d", i))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rejected++
				return
			}
			succeeded = append(succeeded, claimID)
		}()
	}
	wg.Wait()

	assert.Len(t, succeeded, capacity)
	assert.Equal(t, claimants-capacity, rejected)

	// Every successful claim got a distinct id, and the claimed count matches
	// the number of issued claims.
	seen := make(map[string]struct{}, len(succeeded))
	for _, id := range succeeded {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, capacity)

	got, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, capacity, got.ClaimedQty)
}
