package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledger-service/internal/domain"
)

// memStore is an in-memory stand-in for the pgx repositories. It implements
// the repository interfaces the usecases depend on, with the same atomicity
// guarantees: a journal and its entries land together or not at all.
type memStore struct {
	mu sync.Mutex

	ints    map[string]int64
	strs    map[string]string
	acct    map[int64]*domain.Account
	jrnls   map[int64]*domain.Journal
	entries []*domain.Entry
	batches map[int64]*domain.Batch
	stmts   []*domain.BankStatementEntry

	nextJournalID   int64
	nextEntryID     int64
	nextBatchID     int64
	nextStatementID int64

	now time.Time
}

func newMemStore() *memStore {
	return &memStore{
		ints:            make(map[string]int64),
		strs:            make(map[string]string),
		acct:            make(map[int64]*domain.Account),
		jrnls:           make(map[int64]*domain.Journal),
		batches:         make(map[int64]*domain.Batch),
		nextJournalID:   1,
		nextEntryID:     1,
		nextBatchID:     1,
		nextStatementID: 1,
		now:             time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.now = m.now.Add(time.Minute)
	return m.now
}

// ---- SettingsRepository ----

func (m *memStore) GetInt(_ context.Context, name string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.ints[name]
	return v, ok, nil
}

func (m *memStore) SetInt(_ context.Context, name string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[name] = value
	return nil
}

func (m *memStore) GetString(_ context.Context, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.strs[name]
	return v, ok, nil
}

func (m *memStore) SetString(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strs[name] = value
	return nil
}

func (m *memStore) AllocateCounter(_ context.Context, name string, floor, ceiling int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, ok := m.ints[name]
	if !ok {
		next = floor
	}
	if next >= ceiling {
		return 0, fmt.Errorf("%w: counter %s reached %d", domain.ErrRangeExhausted, name, ceiling)
	}
	m.ints[name] = next + 1
	return next, nil
}

// ---- AccountRepository ----

func (m *memStore) Create(_ context.Context, a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.acct[a.ID]; exists {
		return fmt.Errorf("%w: id %d", domain.ErrAccountExists, a.ID)
	}
	a.CreatedAt = m.tick()
	cp := *a
	m.acct[a.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.acct[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) List(_ context.Context, includeArchived bool) ([]*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Account
	for _, a := range m.acct {
		if a.Archived && !includeArchived {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) SetArchived(_ context.Context, id int64, archived bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.acct[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Archived = archived
	return nil
}

func (m *memStore) SetConfidential(_ context.Context, id int64, confidential bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.acct[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Confidential = confidential
	return nil
}

// ---- JournalRepository ----

func (m *memStore) CreateWithEntries(_ context.Context, j *domain.Journal, entries []*domain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertJournalLocked(j, entries)
	return nil
}

func (m *memStore) CreateBatch(_ context.Context, b *domain.Batch, journals []*domain.Journal, entries [][]*domain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.nextBatchID
	m.nextBatchID++
	cp := *b
	m.batches[b.ID] = &cp
	for i, j := range journals {
		j.BatchID = &b.ID
		m.insertJournalLocked(j, entries[i])
	}
	return nil
}

func (m *memStore) insertJournalLocked(j *domain.Journal, entries []*domain.Entry) {
	j.ID = m.nextJournalID
	m.nextJournalID++
	j.CreatedAt = m.tick()
	cp := *j
	m.jrnls[j.ID] = &cp
	for _, e := range entries {
		e.JournalID = j.ID
		e.ID = m.nextEntryID
		m.nextEntryID++
		ecp := *e
		m.entries = append(m.entries, &ecp)
	}
}

func (m *memStore) GetBatchByID(_ context.Context, id int64) (*domain.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) GetJournalByID(_ context.Context, id int64) (*domain.Journal, []*domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jrnls[id]
	if !ok {
		return nil, nil, domain.ErrJournalNotFound
	}
	jcp := *j
	var out []*domain.Entry
	for _, e := range m.entries {
		if e.JournalID == id {
			ecp := *e
			out = append(out, &ecp)
		}
	}
	return &jcp, out, nil
}

// ---- LedgerRepository ----

func (m *memStore) Balance(_ context.Context, accountID int64, asOf *time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.acct[accountID]; !ok {
		return 0, domain.ErrAccountNotFound
	}
	var sum int64
	for _, e := range m.entries {
		if e.AccountID != accountID {
			continue
		}
		if asOf != nil && m.jrnls[e.JournalID].CreatedAt.After(*asOf) {
			continue
		}
		sum += e.Amount
	}
	return sum, nil
}

func (m *memStore) Detail(_ context.Context, accountID int64) (*domain.AccountDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.acct[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	d := &domain.AccountDetail{
		AccountID:   a.ID,
		AccountName: a.Name,
		AccountType: a.Type,
		Timestamp:   m.now,
	}
	for _, e := range m.entries {
		if e.AccountID != accountID {
			continue
		}
		if e.Amount > 0 {
			d.TotalDebits += e.Amount
		} else {
			d.TotalCredits -= e.Amount
		}
		d.Balance += e.Amount
	}
	return d, nil
}

func (m *memStore) Summaries(ctx context.Context, includeArchived bool) ([]*domain.AccountSummary, error) {
	accounts, err := m.List(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AccountSummary
	for _, a := range accounts {
		s := &domain.AccountSummary{
			AccountID:   a.ID,
			AccountName: a.Name,
			AccountType: a.Type,
			Archived:    a.Archived,
		}
		for _, e := range m.entries {
			if e.AccountID == a.ID {
				s.Balance += e.Amount
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) Entries(_ context.Context, accountID, afterID int64, limit int) ([]*domain.LedgerLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []*domain.LedgerLine
	for _, e := range m.entries {
		if e.AccountID != accountID || e.ID <= afterID {
			continue
		}
		j := m.jrnls[e.JournalID]
		out = append(out, &domain.LedgerLine{
			Entry:     *e,
			Narrative: j.UnstructuredNarrative,
			BatchID:   j.BatchID,
			PostedAt:  j.CreatedAt,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ---- StatementRepository ----

func (m *memStore) CreateMany(_ context.Context, lines []*domain.BankStatementEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lines {
		l.ID = m.nextStatementID
		m.nextStatementID++
		cp := *l
		m.stmts = append(m.stmts, &cp)
	}
	return nil
}

func (m *memStore) ListByAccount(_ context.Context, accountID int64) ([]*domain.BankStatementEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.BankStatementEntry
	for _, l := range m.stmts {
		if l.AccountID == accountID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// journalRepoAdapter exposes memStore as a JournalRepository; GetByID clashes
// with AccountRepository's, so the journal variant is renamed on memStore and
// adapted here.
type journalRepoAdapter struct {
	*memStore
}

func (a journalRepoAdapter) GetByID(ctx context.Context, id int64) (*domain.Journal, []*domain.Entry, error) {
	return a.memStore.GetJournalByID(ctx, id)
}

func (m *memStore) journalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jrnls)
}

func (m *memStore) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memStore) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *memStore) mustAccount(id int64, name string, t domain.AccountType) {
	m.acct[id] = &domain.Account{ID: id, Name: name, Type: t, CreatedAt: m.tick()}
}
