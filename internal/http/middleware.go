package http

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const pinHeader = "X-POS-PIN"

// Gate decides whether a PIN unlocks a protected screen.
type Gate interface {
	Allow(screen domain.ScreenKind, pin string) bool
}

// PINGate compares against one configured PIN per protected screen. An empty PIN leaves
// that screen open.
type PINGate struct {
	Cashier string
	Admin   string
}

func (g PINGate) Allow(screen domain.ScreenKind, pin string) bool {
	var want string
	switch screen {
	case domain.ScreenCashier:
		want = g.Cashier
	case domain.ScreenAdmin:
		want = g.Admin
	default:
		return true
	}
	if want == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(pin)) == 1
}

// RequirePIN guards a route group with the PIN of screen, read from the X-POS-PIN header.
func RequirePIN(gate Gate, screen domain.ScreenKind, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !gate.Allow(screen, r.Header.Get(pinHeader)) {
				respondError(w, logger, http.StatusForbidden, "permission_denied", "wrong PIN")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request with the id set by middleware.RequestID.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
			)
		})
	}
}
