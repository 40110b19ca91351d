package categorizer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"k8s.io/klog"
)

// RuleStore loads and saves the rule set.
type RuleStore interface {
	Load() (RuleSet, error)
	Save(RuleSet) error
}

// FileRuleStore keeps the rule set in a yaml file. A missing file reads as the
// default rules.
type FileRuleStore struct {
	Path string
}

func (f FileRuleStore) Load() (RuleSet, error) {
	raw, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		klog.V(1).Infof("No category rules at %s, using defaults", f.Path)
		return DefaultRules(), nil
	} else if err != nil {
		return RuleSet{}, err
	}

	return ParseRules(raw)
}

func (f FileRuleStore) Save(rules RuleSet) error {
	raw, err := MarshalRules(rules)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(f.Path), 0755)
	if err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	// write then rename so readers never see a partial file
	tmp := f.Path + ".tmp"
	err = os.WriteFile(tmp, raw, 0644)
	if err != nil {
		return err
	}

	return os.Rename(tmp, f.Path)
}

// MemoryRuleStore holds the rule set in memory.
type MemoryRuleStore struct {
	mu    sync.Mutex
	rules *RuleSet
	Saves int
}

func (m *MemoryRuleStore) Load() (RuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rules == nil {
		return DefaultRules(), nil
	}
	return m.rules.Clone(), nil
}

func (m *MemoryRuleStore) Save(rules RuleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := rules.Clone()
	m.rules = &c
	m.Saves++
	return nil
}
