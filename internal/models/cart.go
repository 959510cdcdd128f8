package models

import "github.com/shopspring/decimal"

// CartItem is a product snapshot taken when it was added to the cart, plus
// the requested quantity. It is stored flat, the way the web storefront kept
// it in local storage.
type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

// Subtotal returns price × quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderItem converts the line into the immutable snapshot stored on an order.
func (i CartItem) OrderItem() OrderItem {
	return OrderItem{
		ProductID:   i.ID,
		ProductName: i.Name,
		Price:       i.Price,
		Quantity:    i.Quantity,
	}
}

type Cart []CartItem

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c {
		total = total.Add(item.Subtotal())
	}
	return total
}
