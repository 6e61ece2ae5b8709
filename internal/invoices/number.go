package invoices

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// ErrDuplicateNumber is returned by InsertInvoice when the number is taken
// in the store. The engine retries the whole unit of work on it.
var ErrDuplicateNumber = errors.New("invoice number already used in store")

const (
	defaultPrefix  = "INV"
	maxNumberTries = 20
)

type NumberGenerator struct {
	now  func() time.Time
	rand func(n int) int
}

func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now, rand: rand.IntN}
}

// NewNumberGeneratorFunc uses intn in place of the random source.
func NewNumberGeneratorFunc(now func() time.Time, intn func(n int) int) *NumberGenerator {
	return &NumberGenerator{now: now, rand: intn}
}

// Candidate formats {prefix}-{YYMMDD}-{NNNN}.
func (g *NumberGenerator) Candidate(prefix string) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = defaultPrefix
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, g.now().Format("060102"), g.rand(10000))
}

type numberChecker interface {
	InvoiceNumberExists(ctx context.Context, storeID, number string) (bool, error)
}

// Next draws candidates until one is free within the store.
func (g *NumberGenerator) Next(ctx context.Context, tx numberChecker, storeID, prefix string) (string, error) {
	for i := 0; i < maxNumberTries; i++ {
		n := g.Candidate(prefix)
		taken, err := tx.InvoiceNumberExists(ctx, storeID, n)
		if err != nil {
			return "", fmt.Errorf("check invoice number: %w", err)
		}
		if !taken {
			return n, nil
		}
	}
	return "", fmt.Errorf("no free invoice number after %d tries: %w", maxNumberTries, ErrDuplicateNumber)
}
