package purchase

import "time"

// Product is a subscription catalog entry supplied by the store. Price is
// the store's localized display string and is not interpreted.
type Product struct {
	ID          string        `json:"productId"`
	Title       string        `json:"title"`
	Price       string        `json:"localizedPrice"`
	Description string        `json:"description,omitempty"`
	Period      time.Duration `json:"-"`
}

func NewProduct(id, title, price string) (Product, error) {
	if id == "" {
		return Product{}, ErrProductIDRequired
	}
	return Product{ID: id, Title: title, Price: price}, nil
}
