package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/reader"
	"github.com/fjod/go_pos/internal/terminal"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Terminal is the part of terminal.Terminal the control surface drives.
type Terminal interface {
	Scan(ctx context.Context, id domain.Identity) error
	EnterIdentity(ctx context.Context, raw string) (domain.Identity, error)
	Navigate(ctx context.Context, to domain.Screen) error
	Back(ctx context.Context) error
	Increment(ctx context.Context, productID int64) error
	Decrement(ctx context.Context, productID int64) error
	Checkout(ctx context.Context) (domain.Receipt, error)
	Cancel(ctx context.Context) error
	LoadTokens(ctx context.Context, amount int64) error
	Refund(ctx context.Context) error
	Snapshot(ctx context.Context) (terminal.View, error)
	WineEnabled(ctx context.Context) (bool, error)
	SetWineEnabled(ctx context.Context, enabled bool) error
}

type TerminalHandler struct {
	term            Terminal
	gate            Gate
	timeout         time.Duration
	checkoutTimeout time.Duration
	logger          *zap.Logger
}

// NewTerminalHandler builds the handler. checkoutTimeout bounds POST /checkout and has to
// exceed the backend client timeout so a slow charge is not reported as failed.
func NewTerminalHandler(term Terminal, gate Gate, timeout, checkoutTimeout time.Duration, logger *zap.Logger) *TerminalHandler {
	if checkoutTimeout < timeout {
		checkoutTimeout = timeout
	}
	return &TerminalHandler{
		term:            term,
		gate:            gate,
		timeout:         timeout,
		checkoutTimeout: checkoutTimeout,
		logger:          logger,
	}
}

// ScanRequestDTO carries either the UID as hex text or the raw bytes the reader produced.
type ScanRequestDTO struct {
	UID string `json:"uid"`
	Raw []byte `json:"raw"`
}

type IdentityRequestDTO struct {
	UID string `json:"uid"`
}

type IdentityResponseDTO struct {
	Identity domain.Identity `json:"identity"`
}

type ScreenRequestDTO struct {
	Screen   string `json:"screen"`
	Category string `json:"category,omitempty"`
	PIN      string `json:"pin,omitempty"`
}

type LoadRequestDTO struct {
	Amount int64 `json:"amount"`
}

type SettingsDTO struct {
	WineEnabled bool `json:"wine_enabled"`
}

type ReceiptResponseDTO struct {
	SessionID string          `json:"session_id"`
	Summary   string          `json:"summary"`
	Lines     []domain.Line   `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	Order     json.RawMessage `json:"order,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
}

// GET /api/v1/state
func (h *TerminalHandler) State(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.term.Snapshot(ctx)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, view)
}

// POST /api/v1/scan
func (h *TerminalHandler) Scan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ScanRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var id domain.Identity
	if len(req.Raw) > 0 {
		id = reader.FormatUID(req.Raw)
	} else {
		if _, err := hex.DecodeString(strings.TrimSpace(req.UID)); err != nil {
			respondError(w, h.logger, http.StatusBadRequest, "invalid_uid", "uid must be hex encoded")
			return
		}
		normalized, err := reader.NormalizeManual(req.UID)
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		id = normalized
	}

	if err := h.term.Scan(ctx, id); err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusAccepted, IdentityResponseDTO{Identity: id})
}

// POST /api/v1/identity
func (h *TerminalHandler) EnterIdentity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req IdentityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	id, err := h.term.EnterIdentity(ctx, req.UID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusAccepted, IdentityResponseDTO{Identity: id})
}

// POST /api/v1/screen
func (h *TerminalHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ScreenRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	screen, err := parseScreen(req.Screen, req.Category)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if screen.PinGated() && !h.gate.Allow(screen.Kind, req.PIN) {
		respondError(w, h.logger, http.StatusForbidden, "permission_denied", "wrong PIN")
		return
	}

	if err := h.term.Navigate(ctx, screen); err != nil {
		handleError(w, h.logger, err)
		return
	}
	h.respondState(ctx, w)
}

// POST /api/v1/back
func (h *TerminalHandler) Back(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.term.Back(ctx); err != nil {
		handleError(w, h.logger, err)
		return
	}
	h.respondState(ctx, w)
}

// POST /api/v1/cart/{product_id}/increment
func (h *TerminalHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.editCart(w, r, h.term.Increment)
}

// POST /api/v1/cart/{product_id}/decrement
func (h *TerminalHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.editCart(w, r, h.term.Decrement)
}

func (h *TerminalHandler) editCart(w http.ResponseWriter, r *http.Request, edit func(context.Context, int64) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productIDStr := chi.URLParam(r, "product_id")
	productID, err := strconv.ParseInt(productIDStr, 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	if err := edit(ctx, productID); err != nil {
		handleError(w, h.logger, err)
		return
	}
	h.respondState(ctx, w)
}

// POST /api/v1/checkout
func (h *TerminalHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.checkoutTimeout)
	defer cancel()

	receipt, err := h.term.Checkout(ctx)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, ReceiptResponseDTO{
		SessionID: receipt.SessionID,
		Summary:   receipt.Summary(),
		Lines:     receipt.Lines,
		Total:     receipt.Total,
		Order:     receipt.Order,
		PaidAt:    receipt.PaidAt,
	})
}

// POST /api/v1/cancel
func (h *TerminalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.term.Cancel(ctx); err != nil {
		handleError(w, h.logger, err)
		return
	}
	h.respondState(ctx, w)
}

// POST /api/v1/till/load
func (h *TerminalHandler) LoadTokens(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoadRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.term.LoadTokens(ctx, req.Amount); err != nil {
		handleError(w, h.logger, err)
		return
	}
	h.respondState(ctx, w)
}

// POST /api/v1/till/refund
func (h *TerminalHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.term.Refund(ctx); err != nil {
		handleError(w, h.logger, err)
		return
	}
	h.respondState(ctx, w)
}

// GET /api/v1/settings
func (h *TerminalHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	enabled, err := h.term.WineEnabled(ctx)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, SettingsDTO{WineEnabled: enabled})
}

// PUT /api/v1/settings
func (h *TerminalHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.term.SetWineEnabled(ctx, req.WineEnabled); err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, req)
}

// respondState answers a state-changing call with the resulting view.
func (h *TerminalHandler) respondState(ctx context.Context, w http.ResponseWriter) {
	view, err := h.term.Snapshot(ctx)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, view)
}

func parseScreen(kind, category string) (domain.Screen, error) {
	switch k := domain.ScreenKind(strings.ToUpper(strings.TrimSpace(kind))); k {
	case domain.ScreenHome, domain.ScreenCashier, domain.ScreenCounterSelect, domain.ScreenAdmin:
		return domain.Screen{Kind: k}, nil
	case domain.ScreenCounterActive:
		c, err := domain.ParseCategory(category)
		if err != nil {
			return domain.Screen{}, err
		}
		return domain.CounterActive(c), nil
	default:
		return domain.Screen{}, domain.ErrIllegalTransition
	}
}
