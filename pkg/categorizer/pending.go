package categorizer

import (
	"context"
	"fmt"

	"k8s.io/klog"

	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

// PendingStore is the persistence the categorization pass needs.
type PendingStore interface {
	TransactionsNeedingCategory(ctx context.Context) ([]financialimporter.Transaction, error)
	UpdateCategories(ctx context.Context, categories map[string]string) (int, error)
}

type PassResult struct {
	Examined   int              `json:"examined"`
	Updated    int              `json:"updated"`
	ByCategory map[Category]int `json:"byCategory"`
}

// CategorizePending categorizes every stored transaction still waiting for a
// category. Results of Other are not written, so later rule additions can
// still pick those transactions up.
func (c *Categorizer) CategorizePending(ctx context.Context, s PendingStore) (*PassResult, error) {
	pending, err := s.TransactionsNeedingCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load uncategorized transactions: %w", err)
	}

	result := &PassResult{Examined: len(pending), ByCategory: map[Category]int{}}
	updates := map[string]string{}

	for id, category := range c.CategorizeBatch(pending) {
		if category == Other {
			continue
		}

		updates[id] = string(category)
		result.ByCategory[category]++
	}

	if len(updates) == 0 {
		return result, nil
	}

	result.Updated, err = s.UpdateCategories(ctx, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to store categories: %w", err)
	}

	klog.Infof("Categorized %d of %d pending transactions", result.Updated, result.Examined)

	return result, nil
}
