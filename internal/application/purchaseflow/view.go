package purchaseflow

import (
	"iapgate/internal/domain/entitlement"
	"iapgate/internal/domain/purchase"
)

// View is the screen the presentation layer should show.
type View string

const (
	// ViewFetching is shown while no products are known. A failed or empty
	// discovery stays here; it is not an error screen.
	ViewFetching View = "fetching"
	// ViewPaywall lists the products with a purchase action each.
	ViewPaywall View = "paywall"
	// ViewUnlocked is the gated content.
	ViewUnlocked View = "unlocked"
)

// Project picks the view for an entitlement flag and product list.
func Project(entitled bool, products []purchase.Product) View {
	switch {
	case entitled:
		return ViewUnlocked
	case len(products) > 0:
		return ViewPaywall
	default:
		return ViewFetching
	}
}

// Snapshot is a consistent copy of what the presentation layer reads.
type Snapshot struct {
	State             State
	Entitled          bool
	EntitlementSource entitlement.Source
	Products          []purchase.Product
	View              View
}
