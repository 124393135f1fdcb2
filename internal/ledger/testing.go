package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that overwrites the balance of an existing account.
func SeedBalance(s *Store, id string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[id]; ok {
		acc.Balance = amount
	}
}

// Instant returns options without simulated latency or display holds, for tests.
func Instant() Options {
	return Options{}
}
