package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/go_pos/internal/backend"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockAPI struct {
	summary   backend.Summary
	history   []backend.HistoryEntry
	err       error
	limit     int
	resetName string
}

func (m *MockAPI) Summary(ctx context.Context) (backend.Summary, error) {
	return m.summary, m.err
}

func (m *MockAPI) History(ctx context.Context, limit int) ([]backend.HistoryEntry, error) {
	m.limit = limit
	return m.history, m.err
}

func (m *MockAPI) Reset(ctx context.Context, name string) error {
	m.resetName = name
	return m.err
}

func TestSummary(t *testing.T) {
	api := &MockAPI{summary: backend.Summary{
		Since:       "2025-06-01 18:00",
		TopupTotal:  decimal.NewFromInt(300),
		ReturnTotal: decimal.NewFromInt(20),
		NetTotal:    decimal.NewFromInt(280),
	}}
	reports := NewReports(api, 0, zap.NewNop())

	s := reports.Summary(context.Background())

	assert.Equal(t, "2025-06-01 18:00", s.Since)
	assert.True(t, s.NetTotal.Equal(decimal.NewFromInt(280)))
	assert.False(t, s.Degraded)
}

func TestSummary_Degrades(t *testing.T) {
	api := &MockAPI{err: &backend.TransportError{Op: "admin summary", Err: errors.New("refused")}}
	reports := NewReports(api, 0, zap.NewNop())

	s := reports.Summary(context.Background())

	assert.Equal(t, "-", s.Since)
	assert.True(t, s.TopupTotal.IsZero())
	assert.True(t, s.Degraded)
}

func TestHistory_DefaultLimitAndDegrade(t *testing.T) {
	api := &MockAPI{history: []backend.HistoryEntry{{Name: "Friday"}}}
	reports := NewReports(api, 0, zap.NewNop())

	entries := reports.History(context.Background(), 0)
	require.Len(t, entries, 1)
	assert.Equal(t, DefaultHistoryLimit, api.limit)

	reports.History(context.Background(), 5)
	assert.Equal(t, 5, api.limit)

	api.err = errors.New("boom")
	entries = reports.History(context.Background(), 0)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestReset(t *testing.T) {
	api := &MockAPI{}
	reports := NewReports(api, 0, zap.NewNop())

	err := reports.Reset(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Empty(t, api.resetName)

	require.NoError(t, reports.Reset(context.Background(), " Saturday "))
	assert.Equal(t, "Saturday", api.resetName)

	api.err = &backend.RejectionError{Op: "admin reset", Status: 500, Message: "db down"}
	assert.ErrorIs(t, reports.Reset(context.Background(), "Sunday"), domain.ErrRejected)
}
