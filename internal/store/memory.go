package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rettibot/bts-backend/internal/model"
)

// Memory is an in-process PurchaseStore used in tests and local
// development. Each method takes the mutex for its whole duration, which
// gives the same per-record linearizability the remote store provides and
// nothing more: there is still no compare-and-swap, so the lock protocol
// is exercised for real against it.
type Memory struct {
	mu      sync.Mutex
	seq     int
	records map[string]*model.Purchase
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: map[string]*model.Purchase{}}
}

func (m *Memory) FindByPaymentID(ctx context.Context, paymentID string) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.records {
		if p.PaymentID == paymentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindByBackupID(ctx context.Context, backupID string) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.records {
		if p.BackupID == backupID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindByID(ctx context.Context, id string) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) Create(ctx context.Context, p model.Purchase) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = fmt.Sprintf("rec%06d", m.seq)
	cp := p
	m.records[p.ID] = &cp
	out := cp
	return &out, nil
}

// All returns a copy of every record in creation order. Useful when a
// record has no payment id yet, such as fresh reservations.
func (m *Memory) All() []model.Purchase {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Purchase, 0, len(m.records))
	for _, p := range m.records {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Update(ctx context.Context, id string, ch Changes) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if ch.Email != nil {
		p.Email = *ch.Email
	}
	if ch.DownloadCount != nil {
		p.DownloadCount = *ch.DownloadCount
	}
	if ch.BackupUsed != nil {
		p.BackupUsed = *ch.BackupUsed
	}
	if ch.Lock != nil {
		p.Lock = *ch.Lock
	}
	cp := *p
	return &cp, nil
}
