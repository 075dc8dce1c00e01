package domain

import "strings"

// Tier is a membership plan. Any tier may replace any other; downgrades
// are accepted as purchased.
type Tier string

const (
	TierFree     Tier = "free"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// TierInfo describes how a tier is presented and priced.
type TierInfo struct {
	Name     string
	Price    int64   // monthly, minor units
	Discount float64 // applied to ticket prices
}

var tiers = map[Tier]TierInfo{
	TierFree:     {Name: "Free Fan", Price: 0, Discount: 0},
	TierSilver:   {Name: "Silver Member", Price: 999, Discount: 0.05},
	TierGold:     {Name: "Gold Member", Price: 2999, Discount: 0.10},
	TierPlatinum: {Name: "Platinum VIP", Price: 9999, Discount: 0.20},
}

// ParseTier normalizes s and reports whether it names a known tier.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	_, ok := tiers[t]
	return t, ok
}

// Info returns the catalog entry for t. Unknown tiers fall back to their raw name.
func (t Tier) Info() TierInfo {
	if info, ok := tiers[t]; ok {
		return info
	}
	return TierInfo{Name: string(t)}
}
