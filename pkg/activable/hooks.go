package activable

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Hook runs at a removal hook point. Returning an error aborts the removal
// and rolls back its transaction.
type Hook[P any] func(ctx context.Context, tx *gorm.DB, entity P) error

// BeforeRemover can be implemented by a model to run logic before its removal.
type BeforeRemover interface {
	BeforeRemove(tx *gorm.DB) error
}

// AfterRemover can be implemented by a model to run logic after its removal.
type AfterRemover interface {
	AfterRemove(tx *gorm.DB) error
}

// hookChain is an append-only list of hooks run in registration order.
type hookChain[P any] struct {
	hooks []Hook[P]
	mu    sync.RWMutex
}

func (c *hookChain[P]) add(h Hook[P]) {
	c.mu.Lock()
	c.hooks = append(c.hooks, h)
	c.mu.Unlock()
}

func (c *hookChain[P]) snapshot() []Hook[P] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Hook[P](nil), c.hooks...)
}

func (c *hookChain[P]) run(ctx context.Context, tx *gorm.DB, phase Phase, entity P) error {
	for i, h := range c.snapshot() {
		if err := h(ctx, tx, entity); err != nil {
			return &HookError{Phase: phase, Index: i, Err: err}
		}
	}
	return nil
}

func runBeforeModelHook(tx *gorm.DB, entity any) error {
	if h, ok := entity.(BeforeRemover); ok {
		if err := h.BeforeRemove(tx); err != nil {
			return &HookError{Phase: PhaseBeforeRemoval, Index: -1, Err: err}
		}
	}
	return nil
}

func runAfterModelHook(tx *gorm.DB, entity any) error {
	if h, ok := entity.(AfterRemover); ok {
		if err := h.AfterRemove(tx); err != nil {
			return &HookError{Phase: PhaseAfterRemoval, Index: -1, Err: err}
		}
	}
	return nil
}
