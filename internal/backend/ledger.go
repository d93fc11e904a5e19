package backend

import (
	"context"
	"net/http"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

func (c *Client) Balance(ctx context.Context, uid domain.Identity) (decimal.Decimal, error) {
	var out balanceResponse
	err := c.do(ctx, call{
		op:     "fetch balance",
		method: http.MethodGet,
		path:   []string{"balance", uid.String()},
	}, &out)
	if err != nil {
		return decimal.Zero, err
	}
	return out.Balance, nil
}

type loadRequest struct {
	UID    string `json:"uid"`
	Amount int64  `json:"amount"`
}

func (c *Client) Load(ctx context.Context, uid domain.Identity, amount int64) error {
	return c.do(ctx, call{
		op:     "load tokens",
		method: http.MethodPost,
		path:   []string{"load"},
		body:   loadRequest{UID: uid.String(), Amount: amount},
	}, nil)
}

type refundRequest struct {
	UID string `json:"uid"`
}

func (c *Client) Refund(ctx context.Context, uid domain.Identity) error {
	return c.do(ctx, call{
		op:     "refund",
		method: http.MethodPost,
		path:   []string{"refund"},
		body:   refundRequest{UID: uid.String()},
	}, nil)
}
