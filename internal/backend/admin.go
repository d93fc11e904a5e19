package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
)

type Summary struct {
	Since       string          `json:"since"`
	TopupTotal  decimal.Decimal `json:"topup_total"`
	ReturnTotal decimal.Decimal `json:"return_total"`
	NetTotal    decimal.Decimal `json:"net_total"`
}

type HistoryEntry struct {
	Name        string          `json:"name"`
	RangeStart  string          `json:"range_start"`
	RangeEnd    string          `json:"range_end"`
	TopupTotal  decimal.Decimal `json:"topup_total"`
	ReturnTotal decimal.Decimal `json:"return_total"`
	NetTotal    decimal.Decimal `json:"net_total"`
}

func (c *Client) Summary(ctx context.Context) (Summary, error) {
	var out Summary
	err := c.do(ctx, call{
		op:     "admin summary",
		method: http.MethodGet,
		path:   []string{"admin", "summary"},
	}, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	var out []HistoryEntry
	err := c.do(ctx, call{
		op:     "admin history",
		method: http.MethodGet,
		path:   []string{"admin", "history"},
		query:  url.Values{"limit": []string{strconv.Itoa(limit)}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type resetRequest struct {
	Name string `json:"name"`
}

func (c *Client) Reset(ctx context.Context, name string) error {
	return c.do(ctx, call{
		op:     "admin reset",
		method: http.MethodPost,
		path:   []string{"admin", "reset"},
		body:   resetRequest{Name: name},
	}, nil)
}
