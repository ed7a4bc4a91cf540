package gate

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"StockNewsScanner/internal/ports"
)

// Key builds the article identity from the normalized headline and link.
func Key(headline, link string) string {
	normalized := strings.ToLower(strings.TrimSpace(headline)) + "\n" + strings.TrimSpace(link)
	sum := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Dedup rejects articles whose identity is already in the ledger.
type Dedup struct {
	ledger ports.DedupLedger
}

// NewDedup wires the gate to a ledger implementation.
func NewDedup(ledger ports.DedupLedger) *Dedup {
	return &Dedup{ledger: ledger}
}

// Admit returns true exactly once per article identity, inserting the
// identity into the ledger on first sight.
func (d *Dedup) Admit(ctx context.Context, headline, link string) (bool, error) {
	key := Key(headline, link)

	seen, err := d.ledger.Seen(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check dedup ledger: %w", err)
	}
	if seen {
		return false, nil
	}

	if err := d.ledger.Mark(ctx, key); err != nil {
		return false, fmt.Errorf("mark dedup ledger: %w", err)
	}
	return true, nil
}
