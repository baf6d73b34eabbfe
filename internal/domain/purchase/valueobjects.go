// Package purchase models the catalog entries, transactions and errors a
// platform store reports, and the receipt validation verdicts.
package purchase

// Platform identifies the store platform the app runs against.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

func (p Platform) IsValid() bool {
	switch p {
	case PlatformAndroid, PlatformIOS:
		return true
	default:
		return false
	}
}

func (p Platform) String() string {
	return string(p)
}

// Select returns the product ids configured for p. A platform without an
// entry yields an empty, non-nil list.
func (p Platform) Select(byPlatform map[string][]string) []string {
	ids := byPlatform[string(p)]
	if ids == nil {
		return []string{}
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// UnlockPolicy decides whether a purchase event alone unlocks content.
type UnlockPolicy string

const (
	// UnlockOptimistic grants entitlement as soon as the store reports a
	// purchase; validation only confirms.
	UnlockOptimistic UnlockPolicy = "optimistic"
	// UnlockConfirm waits for the validator to report an active subscription.
	UnlockConfirm UnlockPolicy = "confirm"
)

func (p UnlockPolicy) IsValid() bool {
	switch p {
	case UnlockOptimistic, UnlockConfirm:
		return true
	default:
		return false
	}
}

func (p UnlockPolicy) String() string {
	return string(p)
}

// ParseUnlockPolicy returns UnlockOptimistic for an empty string.
func ParseUnlockPolicy(s string) (UnlockPolicy, error) {
	if s == "" {
		return UnlockOptimistic, nil
	}
	p := UnlockPolicy(s)
	if !p.IsValid() {
		return "", ErrInvalidUnlockPolicy
	}
	return p, nil
}
