package orders

import (
	"encoding/json"
	"github.com/shopspring/decimal"
	"time"
)

type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

func (c Currency) Valid() bool { return c == CurrencyINR || c == CurrencyUSD }

type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// MarshalJSON renders the amount as a JSON number rather than decimal's default string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   json.Number `json:"amount"`
		Currency Currency    `json:"currency"`
	}{Amount: json.Number(m.Amount.String()), Currency: m.Currency})
}

// LineItem is a snapshot of a catalog product taken when the order was created.
type LineItem struct {
	Product  string `json:"product"`
	Title    string `json:"title"`
	Price    Money  `json:"price"`
	Quantity int    `json:"quantity"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Amount.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID              string     `json:"_id"`
	User            string     `json:"user"`
	Items           []LineItem `json:"items"`
	Status          Status     `json:"status"`
	TotalPrice      Money      `json:"totalPrice"`
	ShippingAddress Address    `json:"shippingAddress"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Page is one slice of a user's orders, newest first.
type Page struct {
	Data       []Order `json:"data"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	Total      int64   `json:"total"`
	TotalPages int     `json:"totalPages"`
}

func NewPage(data []Order, page, pageSize int, total int64) Page {
	if data == nil {
		data = []Order{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Page{Data: data, Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}

// Offset is the number of orders skipped before page starts.
func Offset(page, pageSize int) int64 {
	return int64(page-1) * int64(pageSize)
}
