package upstream

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"net/http"
	"net/url"
)

// Cart reads GET {base}/api/cart.
type Cart struct{ *Client }

var _ orders.CartSource = Cart{}

type cartResponse struct {
	Items []orders.CartItem `json:"items"`
}

// Items returns the cart of the user the token was issued to; userID is only
// used for error context since the cart service scopes by credential.
func (c Cart) Items(ctx context.Context, userID, token string) ([]orders.CartItem, error) {
	var body cartResponse
	if err := c.getJSON(ctx, "/api/cart", token, &body); err != nil {
		return nil, orders.Upstream("cart", err)
	}
	return body.Items, nil
}

// Catalog reads GET {base}/api/products/{id}.
type Catalog struct{ *Client }

var _ orders.CatalogSource = Catalog{}

type productResponse struct {
	Data *orders.Product `json:"data"`
}

func (c Catalog) Product(ctx context.Context, productID, token string) (orders.Product, error) {
	var body productResponse
	err := c.getJSON(ctx, "/api/products/"+url.PathEscape(productID), token, &body)
	var se *StatusError
	switch {
	case errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusBadRequest):
		return orders.Product{}, orders.NotFoundf("product %s not found", productID)
	case err != nil:
		return orders.Product{}, orders.Upstream("catalog", err)
	case body.Data == nil:
		return orders.Product{}, orders.NotFoundf("product %s not found", productID)
	}
	p := *body.Data
	if p.ID == "" {
		p.ID = productID
	}
	// The catalog defaults unset currencies to INR.
	if p.Price.Currency == "" {
		p.Price.Currency = orders.CurrencyINR
	}
	return p, nil
}
