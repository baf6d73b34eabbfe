package purchase

import "time"

// Transaction is a completed or restored purchase reported by the store.
// Receipt is opaque and may be empty.
type Transaction struct {
	TransactionID string    `json:"transactionId"`
	ProductID     string    `json:"productId"`
	Receipt       string    `json:"transactionReceipt"`
	PurchasedAt   time.Time `json:"transactionDate"`
}

func (t Transaction) HasReceipt() bool {
	return t.Receipt != ""
}

// LatestReceipt returns the receipt of the last entry of a purchase
// history, or "" when the history is empty or the entry carries none.
func LatestReceipt(history []Transaction) string {
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1].Receipt
}
