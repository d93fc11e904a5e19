package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrMissingSessionID = errors.New("backend: response carried no scan session id")

type scanRequest struct {
	UID   string `json:"uid"`
	PosID string `json:"pos_id"`
}

type scanResponse struct {
	ScanSessionID string `json:"scanSessionId"`
}

// OpenSession asks the backend for a scan session bound to uid.
func (c *Client) OpenSession(ctx context.Context, uid domain.Identity, posID string) (string, error) {
	var out scanResponse
	err := c.do(ctx, call{
		op:     "open session",
		method: http.MethodPost,
		path:   []string{"pos", "scan"},
		body:   scanRequest{UID: uid.String(), PosID: posID},
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ScanSessionID == "" {
		return "", &TransportError{Op: "open session", Err: ErrMissingSessionID}
	}
	return out.ScanSessionID, nil
}

type productPayload struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	InDrinks bool            `json:"in_drinks"`
	InFood   bool            `json:"in_food"`
	InWine   bool            `json:"in_wine"`
}

type productsResponse struct {
	Products []productPayload `json:"products"`
}

func (p productPayload) toProduct() domain.Product {
	return domain.Product{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		InDrinks: p.InDrinks,
		InFood:   p.InFood,
		InWine:   p.InWine,
	}
}

// Products fetches the catalog visible to a scan session. A rejection means the session is
// no longer valid.
func (c *Client) Products(ctx context.Context, sessionID string) ([]domain.Product, error) {
	var out productsResponse
	err := c.do(ctx, call{
		op:        "fetch products",
		method:    http.MethodGet,
		path:      []string{"pos", "products"},
		sessionID: sessionID,
	}, &out)
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(out.Products))
	for _, p := range out.Products {
		products = append(products, p.toProduct())
	}
	return products, nil
}

func (c *Client) CancelSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, call{
		op:        "cancel session",
		method:    http.MethodPost,
		path:      []string{"pos", "cancel"},
		sessionID: sessionID,
	}, nil)
}

type ChargeItem struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

type ChargeRequest struct {
	Amount float64      `json:"amount"`
	Items  []ChargeItem `json:"items"`
}

type chargeResponse struct {
	Order json.RawMessage `json:"order"`
}

// NewChargeRequest builds the charge payload from the lines shown to the operator.
func NewChargeRequest(lines []domain.Line, total decimal.Decimal) ChargeRequest {
	items := make([]ChargeItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, ChargeItem{
			ID:    l.ProductID,
			Name:  l.Name,
			Qty:   l.Quantity,
			Price: l.UnitPrice.InexactFloat64(),
		})
	}
	return ChargeRequest{Amount: total.InexactFloat64(), Items: items}
}

// Charge debits the session's identity. The backend validates and consumes the session.
func (c *Client) Charge(ctx context.Context, sessionID string, req ChargeRequest) (json.RawMessage, error) {
	var out chargeResponse
	err := c.do(ctx, call{
		op:        "charge",
		method:    http.MethodPost,
		path:      []string{"charge"},
		sessionID: sessionID,
		body:      req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Order, nil
}
