package decision

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Policy holds the operator-declared exceptions to the approval gate.
// Categories are the executor capability names tasks are routed by.
type Policy struct {
	// AutoFixWhitelist lists categories whose auto-fix actions run without approval.
	AutoFixWhitelist []string `yaml:"autofix_whitelist"`
	// EmergencyCategories lists categories whose immediate interventions may
	// bypass approval. Everything else in the immediate class is still gated.
	EmergencyCategories []string `yaml:"emergency_categories"`
	// ConsentCategories lists notify-class categories considered
	// reversible-with-consent: dispatch waits on an optional approval.
	ConsentCategories []string `yaml:"consent_categories"`
}

// PolicyStore provides concurrent access to the active policy and supports
// hot-swapping it when the policy file changes on disk.
type PolicyStore struct {
	mu     sync.RWMutex
	policy Policy
}

// NewPolicyStore creates a store seeded with the given policy.
func NewPolicyStore(p Policy) *PolicyStore {
	return &PolicyStore{policy: p}
}

// LoadPolicy reads a policy from a YAML file.
// A missing path yields an empty policy: everything is approval-gated.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return Policy{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Policy{}, nil
		}
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return p, nil
}

// Replace swaps the active policy.
func (s *PolicyStore) Replace(p Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

// Current returns a copy of the active policy.
func (s *PolicyStore) Current() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// IsWhitelisted reports whether auto-fix actions in the category run unapproved.
func (s *PolicyStore) IsWhitelisted(category string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return contains(s.policy.AutoFixWhitelist, category)
}

// IsEmergency reports whether the category is pre-declared for
// approval-free immediate intervention.
func (s *PolicyStore) IsEmergency(category string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return contains(s.policy.EmergencyCategories, category)
}

// RequiresConsent reports whether notify-class actions in the category
// attach an optional approval before dispatch.
func (s *PolicyStore) RequiresConsent(category string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return contains(s.policy.ConsentCategories, category)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
