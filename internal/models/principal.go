// Package models - principal identity and service tiers.
// A principal is the identity a rate limit is scoped to. It is resolved by an
// upstream authentication collaborator before this layer runs; edgegate never
// validates credentials itself.
package models

import "fmt"

// Tier is a named service level determining quota magnitude. It is a closed
// set: configuration validation rejects policies for unknown tiers, and
// request-time lookups for unknown tiers fall back to TierFree.
type Tier string

const (
	TierFree       Tier = "free"
	TierPaid       Tier = "paid"
	TierEnterprise Tier = "enterprise"
)

// AllTiers lists every valid tier, for exhaustive config validation.
var AllTiers = []Tier{TierFree, TierPaid, TierEnterprise}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPaid, TierEnterprise:
		return true
	}
	return false
}

// ParseTier converts a string to a Tier, rejecting unknown values.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier: %q", s)
	}
	return t, nil
}

// Principal is the identity admitted requests are accounted against.
// For unauthenticated paths the client's network address substitutes for ID
// under the free tier.
type Principal struct {
	ID   string `json:"id"`
	Tier Tier   `json:"tier"`
}

// AnonymousPrincipal builds the IP-substituted principal used on endpoints
// that accept unauthenticated traffic.
func AnonymousPrincipal(addr string) Principal {
	return Principal{ID: addr, Tier: TierFree}
}
