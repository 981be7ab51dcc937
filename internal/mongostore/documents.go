package mongostore

import (
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"time"
)

type moneyDoc struct {
	Amount   primitive.Decimal128 `bson:"amount"`
	Currency string               `bson:"currency"`
}

type lineItemDoc struct {
	Product  string   `bson:"product"`
	Title    string   `bson:"title"`
	Price    moneyDoc `bson:"price"`
	Quantity int      `bson:"quantity"`
}

type addrDoc struct {
	Street  string `bson:"street"`
	City    string `bson:"city"`
	State   string `bson:"state"`
	Country string `bson:"country"`
	Pincode string `bson:"pincode"`
	Phone   string `bson:"phone,omitempty"`
}

type orderDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	User            string             `bson:"user"`
	Items           []lineItemDoc      `bson:"items"`
	Status          string             `bson:"status"`
	TotalPrice      moneyDoc           `bson:"totalPrice"`
	ShippingAddress addrDoc            `bson:"shippingAddress"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func toMoneyDoc(m orders.Money) (moneyDoc, error) {
	d, err := primitive.ParseDecimal128(m.Amount.String())
	if err != nil {
		return moneyDoc{}, fmt.Errorf("mongo: encode amount %s: %w", m.Amount, err)
	}
	return moneyDoc{Amount: d, Currency: string(m.Currency)}, nil
}

func (m moneyDoc) toMoney() (orders.Money, error) {
	amt, err := decimal.NewFromString(m.Amount.String())
	if err != nil {
		return orders.Money{}, fmt.Errorf("mongo: decode amount %s: %w", m.Amount, err)
	}
	return orders.Money{Amount: amt, Currency: orders.Currency(m.Currency)}, nil
}

func addressDoc(a orders.Address) addrDoc {
	return addrDoc{Street: a.Street, City: a.City, State: a.State, Country: a.Country, Pincode: a.Pincode, Phone: a.Phone}
}

func toDocument(o orders.Order) (orderDoc, error) {
	total, err := toMoneyDoc(o.TotalPrice)
	if err != nil {
		return orderDoc{}, err
	}
	items := make([]lineItemDoc, 0, len(o.Items))
	for _, it := range o.Items {
		price, err := toMoneyDoc(it.Price)
		if err != nil {
			return orderDoc{}, err
		}
		items = append(items, lineItemDoc{Product: it.Product, Title: it.Title, Price: price, Quantity: it.Quantity})
	}
	return orderDoc{
		User:            o.User,
		Items:           items,
		Status:          string(o.Status),
		TotalPrice:      total,
		ShippingAddress: addressDoc(o.ShippingAddress),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}, nil
}

func (d orderDoc) toOrder() (orders.Order, error) {
	total, err := d.TotalPrice.toMoney()
	if err != nil {
		return orders.Order{}, err
	}
	items := make([]orders.LineItem, 0, len(d.Items))
	for _, it := range d.Items {
		price, err := it.Price.toMoney()
		if err != nil {
			return orders.Order{}, err
		}
		items = append(items, orders.LineItem{Product: it.Product, Title: it.Title, Price: price, Quantity: it.Quantity})
	}
	a := d.ShippingAddress
	return orders.Order{
		ID:              d.ID.Hex(),
		User:            d.User,
		Items:           items,
		Status:          orders.Status(d.Status),
		TotalPrice:      total,
		ShippingAddress: orders.Address{Street: a.Street, City: a.City, State: a.State, Country: a.Country, Pincode: a.Pincode, Phone: a.Phone},
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}, nil
}
