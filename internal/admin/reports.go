package admin

import (
	"context"
	"strings"

	"github.com/fjod/go_pos/internal/backend"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultHistoryLimit = 100

type API interface {
	Summary(ctx context.Context) (backend.Summary, error)
	History(ctx context.Context, limit int) ([]backend.HistoryEntry, error)
	Reset(ctx context.Context, name string) error
}

// Summary is the running counter since the last reset. Degraded is set when the backend
// could not be reached and the zero values are placeholders.
type Summary struct {
	Since       string          `json:"since"`
	TopupTotal  decimal.Decimal `json:"topup_total"`
	ReturnTotal decimal.Decimal `json:"return_total"`
	NetTotal    decimal.Decimal `json:"net_total"`
	Degraded    bool            `json:"degraded"`
}

type Reports struct {
	api          API
	historyLimit int
	logger       *zap.Logger
}

func NewReports(api API, historyLimit int, logger *zap.Logger) *Reports {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Reports{
		api:          api,
		historyLimit: historyLimit,
		logger:       logger.With(zap.String("component", "admin")),
	}
}

// Summary never fails; on error it reports "-" and zero totals.
func (r *Reports) Summary(ctx context.Context) Summary {
	s, err := r.api.Summary(ctx)
	if err != nil {
		r.logger.Warn("admin summary unavailable", zap.Error(err))
		return Summary{Since: "-", Degraded: true}
	}
	since := strings.TrimSpace(s.Since)
	if since == "" {
		since = "-"
	}
	return Summary{
		Since:       since,
		TopupTotal:  s.TopupTotal,
		ReturnTotal: s.ReturnTotal,
		NetTotal:    s.NetTotal,
	}
}

// History lists past snapshots, newest first as the backend returns them. A limit of zero
// uses the configured default. Errors yield an empty list.
func (r *Reports) History(ctx context.Context, limit int) []backend.HistoryEntry {
	if limit <= 0 {
		limit = r.historyLimit
	}
	entries, err := r.api.History(ctx, limit)
	if err != nil {
		r.logger.Warn("admin history unavailable", zap.Error(err))
		return []backend.HistoryEntry{}
	}
	if entries == nil {
		return []backend.HistoryEntry{}
	}
	return entries
}

// Reset closes the current counter period under name.
func (r *Reports) Reset(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrMissingName
	}
	if err := r.api.Reset(ctx, name); err != nil {
		r.logger.Warn("admin reset failed", zap.String("name", name), zap.Error(err))
		return err
	}
	r.logger.Info("counters reset", zap.String("name", name))
	return nil
}
