package config

import (
	"os"
	"strconv"
	"sync"
)

// StockPolicy describes one stock class of blank check paper
type StockPolicy struct {
	SheetsPerBook int `json:"sheetsPerBook"`
	MaxBooks      int `json:"maxBooks"`
}

// PrintPolicies is the policy table keyed by stock class. It is consulted
// at the start of every allocation and may change at runtime through the
// settings endpoint, so all access goes through the lock.
type PrintPolicies struct {
	mu       sync.RWMutex
	policies map[string]StockPolicy
}

// NewPrintPolicies builds a policy table for the three stock classes
func NewPrintPolicies(individual, corporate, certified StockPolicy) *PrintPolicies {
	return &PrintPolicies{
		policies: map[string]StockPolicy{
			"individual": individual,
			"corporate":  corporate,
			"certified":  certified,
		},
	}
}

// LoadPrintPolicies reads the policy table defaults, with env overrides
// for the per-book sheet counts and batch caps.
func LoadPrintPolicies() *PrintPolicies {
	return NewPrintPolicies(
		StockPolicy{
			SheetsPerBook: getEnvAsInt("POLICY_INDIVIDUAL_SHEETS", 25),
			MaxBooks:      getEnvAsInt("POLICY_INDIVIDUAL_MAX_BOOKS", 1),
		},
		StockPolicy{
			SheetsPerBook: getEnvAsInt("POLICY_CORPORATE_SHEETS", 50),
			MaxBooks:      getEnvAsInt("POLICY_CORPORATE_MAX_BOOKS", 1),
		},
		StockPolicy{
			SheetsPerBook: getEnvAsInt("POLICY_CERTIFIED_SHEETS", 50),
			MaxBooks:      getEnvAsInt("POLICY_CERTIFIED_MAX_BOOKS", 10),
		},
	)
}

// ForStockClass returns the policy for a stock class, or false if the
// class is unknown.
func (p *PrintPolicies) ForStockClass(stockClass string) (StockPolicy, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	policy, ok := p.policies[stockClass]
	return policy, ok
}

// Set replaces the policy for a known stock class. Unknown classes are
// rejected; the set of classes is fixed.
func (p *PrintPolicies) Set(stockClass string, policy StockPolicy) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.policies[stockClass]; !ok {
		return false
	}
	p.policies[stockClass] = policy
	return true
}

// Snapshot returns a copy of the current policy table
func (p *PrintPolicies) Snapshot() map[string]StockPolicy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]StockPolicy, len(p.policies))
	for class, policy := range p.policies {
		out[class] = policy
	}
	return out
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
