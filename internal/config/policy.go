package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/aristath/cardrisk/internal/domain"
	"gopkg.in/yaml.v3"
)

// RiskPolicy is the band configuration the console runs with
type RiskPolicy struct {
	Scheme           domain.BandScheme
	Flagged          domain.BandSet // Counted by the flagged KPI
	DrilldownFlagged domain.BandSet // Listed by the flagged drill-down
}

type policyFile struct {
	Bands            []string `yaml:"bands"`
	Flagged          []string `yaml:"flagged"`
	DrilldownFlagged []string `yaml:"drilldown_flagged"`
}

// DefaultRiskPolicy returns the five-band policy
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		Scheme:           domain.FiveBand,
		Flagged:          domain.NewBandSet(domain.BandMedium, domain.BandHigh, domain.BandCritical),
		DrilldownFlagged: domain.NewBandSet(domain.BandHigh, domain.BandCritical),
	}
}

// ParseRiskPolicy decodes a YAML policy. Omitted keys keep their defaults.
func ParseRiskPolicy(data []byte) (RiskPolicy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return RiskPolicy{}, fmt.Errorf("failed to parse risk policy: %w", err)
	}

	policy := DefaultRiskPolicy()
	if len(f.Bands) > 0 {
		scheme, err := domain.ParseBandScheme(f.Bands)
		if err != nil {
			return RiskPolicy{}, fmt.Errorf("invalid bands: %w", err)
		}
		policy.Scheme = scheme
	}
	if f.Flagged != nil {
		policy.Flagged = domain.ParseBandSet(f.Flagged)
	}
	if f.DrilldownFlagged != nil {
		policy.DrilldownFlagged = domain.ParseBandSet(f.DrilldownFlagged)
	}
	return policy, nil
}

// LoadRiskPolicy reads a policy file; an empty path yields the defaults
func LoadRiskPolicy(path string) (RiskPolicy, error) {
	if path == "" {
		return DefaultRiskPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RiskPolicy{}, fmt.Errorf("failed to read risk policy %s: %w", path, err)
	}
	return ParseRiskPolicy(data)
}

type versionedPolicy struct {
	policy  RiskPolicy
	version uint64
}

// PolicyStore holds the live risk policy. Readers never block.
type PolicyStore struct {
	current atomic.Pointer[versionedPolicy]
}

// NewPolicyStore creates a store holding policy as version 1
func NewPolicyStore(policy RiskPolicy) *PolicyStore {
	s := &PolicyStore{}
	s.current.Store(&versionedPolicy{policy: policy, version: 1})
	return s
}

// Get returns the current policy
func (s *PolicyStore) Get() RiskPolicy {
	return s.current.Load().policy
}

// Version increments on every Set
func (s *PolicyStore) Version() uint64 {
	return s.current.Load().version
}

// Snapshot returns the policy and its version from the same load
func (s *PolicyStore) Snapshot() (RiskPolicy, uint64) {
	v := s.current.Load()
	return v.policy, v.version
}

// Set replaces the current policy
func (s *PolicyStore) Set(policy RiskPolicy) {
	for {
		old := s.current.Load()
		next := &versionedPolicy{policy: policy, version: old.version + 1}
		if s.current.CompareAndSwap(old, next) {
			return
		}
	}
}
