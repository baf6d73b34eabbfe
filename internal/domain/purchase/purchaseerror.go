package purchase

import "fmt"

// Normalized error codes reported alongside the raw platform response code.
const (
	CodeUserCancelled = "E_USER_CANCELLED"
	CodeUnknown       = "E_UNKNOWN"
	CodeItemUnavail   = "E_ITEM_UNAVAILABLE"
	CodeNetworkError  = "E_NETWORK_ERROR"
	CodeAlreadyOwned  = "E_ALREADY_OWNED"
)

// DefaultCancelResponseCode is the platform response code for a purchase the
// user aborted.
const DefaultCancelResponseCode = "2"

// PurchaseError is a failed or cancelled transaction reported by the store.
type PurchaseError struct {
	Code         string `json:"code"`
	ResponseCode string `json:"responseCode"`
	Message      string `json:"message"`
	ProductID    string `json:"productId,omitempty"`
}

func (e PurchaseError) Error() string {
	return fmt.Sprintf("purchase failed: code=%s response_code=%s: %s", e.Code, e.ResponseCode, e.Message)
}

// IsUserCancelled reports whether the error is the platform's cancellation
// sentinel. Cancellations must never be surfaced to the user.
func (e PurchaseError) IsUserCancelled(cancelResponseCode string) bool {
	if cancelResponseCode != "" && e.ResponseCode == cancelResponseCode {
		return true
	}
	return e.Code == CodeUserCancelled
}

// DisplayCode is the code shown to the user: the normalized code, or the raw
// response code when the store sent none.
func (e PurchaseError) DisplayCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.ResponseCode
}
