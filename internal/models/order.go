package models

// Order is a line embedded in its owning User. It has no identity of its own: two orders
// with the same product, price and quantity are the same order.
type Order struct {
	ProductName string  `json:"productName" bson:"productName"`
	Price       float64 `json:"price" bson:"price"`
	Quantity    int     `json:"quantity" bson:"quantity"`
}

// Total is price times quantity.
func (o Order) Total() float64 {
	return o.Price * float64(o.Quantity)
}

// UniqueOrders drops repeated orders, keeping the first occurrence of each. The result is
// never nil.
func UniqueOrders(orders []Order) []Order {
	out := make([]Order, 0, len(orders))
	seen := make(map[Order]struct{}, len(orders))
	for _, o := range orders {
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}
