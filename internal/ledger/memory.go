package ledger

import (
	"context"
	"fmt"
	"sync"
)

type memoryEntry struct {
	value   int64
	active  bool
	version uint64
}

// Memory реализует леджер в памяти на основе оптимистичного сравнения версий.
// Используется локальными коллабораторами и тестами.
type Memory struct {
	mu      sync.RWMutex
	entries map[int64]*memoryEntry
}

// NewMemory создаёт пустой леджер в памяти.
func NewMemory() *Memory {
	return &Memory{entries: make(map[int64]*memoryEntry)}
}

// Put задаёт значение и статус сущности, создавая её при необходимости.
func (m *Memory) Put(entityID, value int64, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[entityID]; ok {
		e.value = value
		e.active = active
		e.version++
		return
	}
	m.entries[entityID] = &memoryEntry{value: value, active: active}
}

// Value возвращает текущее значение сущности.
func (m *Memory) Value(entityID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[entityID]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrEntityNotFound, entityID)
	}
	return e.value, nil
}

// TryApply применяет дельту, если итог не ниже guard.MinResult и статус
// удовлетворяет условию. Проигрыш гонки версий возвращает ErrConcurrencyConflict.
func (m *Memory) TryApply(ctx context.Context, entityID int64, delta int64, guard Guard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	e, ok := m.entries[entityID]
	if !ok {
		m.mu.RUnlock()
		return fmt.Errorf("%w: id %d", ErrEntityNotFound, entityID)
	}
	snapshotValue := e.value
	snapshotVersion := e.version
	snapshotActive := e.active
	m.mu.RUnlock()

	if guard.RequireActive && !snapshotActive {
		return fmt.Errorf("%w: entity %d is not active", ErrRejected, entityID)
	}
	if snapshotValue+delta < guard.MinResult {
		return fmt.Errorf("%w: result %d below minimum %d", ErrRejected, snapshotValue+delta, guard.MinResult)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e.version != snapshotVersion {
		return fmt.Errorf("%w: entity %d", ErrConcurrencyConflict, entityID)
	}
	e.value += delta
	e.version++
	return nil
}
