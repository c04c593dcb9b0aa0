package inference

import (
	"math/rand/v2"
	"strings"
)

// CredentialPool spreads inference calls across interchangeable API keys.
// The key list never changes after construction, so concurrent Select calls
// need no locking. Selection is a memoryless uniform draw with replacement.
type CredentialPool struct {
	keys []string
	pick func(n int) int
}

// NewCredentialPool returns a pool over the non-blank, de-duplicated keys in
// their original order. An empty pool is allowed; Select then reports false.
func NewCredentialPool(keys []string) *CredentialPool {
	seen := make(map[string]struct{}, len(keys))
	cleaned := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, key)
	}
	return &CredentialPool{keys: cleaned, pick: rand.IntN}
}

// ParseCredentialList splits a comma or newline separated key list.
func ParseCredentialList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ' ' || r == '\t'
	})
}

// Select draws one credential. It returns false only when the pool is empty.
func (p *CredentialPool) Select() (string, bool) {
	if p == nil || len(p.keys) == 0 {
		return "", false
	}
	return p.keys[p.pick(len(p.keys))], true
}

// Len reports how many credentials the pool holds.
func (p *CredentialPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns a copy of the pooled credentials.
func (p *CredentialPool) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}
