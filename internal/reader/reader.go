package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fjod/go_pos/internal/domain"
)

// FormatUID renders tag id bytes as upper-case hex, two digits per byte, no separators.
func FormatUID(id []byte) domain.Identity {
	var b strings.Builder
	b.Grow(len(id) * 2)
	for _, v := range id {
		fmt.Fprintf(&b, "%02X", v)
	}
	return domain.Identity(b.String())
}

// NormalizeManual turns a typed UID into an Identity.
func NormalizeManual(raw string) (domain.Identity, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == "" {
		return "", domain.ErrInvalidIdentity
	}
	return domain.Identity(id), nil
}

// Lines reads one UID per line, as keyboard-wedge readers type them, and hands each
// to onScan. Blank lines are skipped. Returns when r is exhausted or ctx is cancelled.
func Lines(ctx context.Context, r io.Reader, onScan func(domain.Identity)) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			id, err := NormalizeManual(line)
			if err != nil {
				continue
			}
			onScan(id)
		}
	}
}
