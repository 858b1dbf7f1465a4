package hrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/usecase"
)

// fakeStore backs the handler tests with an in-memory implementation of the
// repository interfaces.
type fakeStore struct {
	mu sync.Mutex

	ints map[string]int64
	strs map[string]string
	acct map[int64]*domain.Account

	jrnls   map[int64]*domain.Journal
	entries []*domain.Entry
	batches map[int64]*domain.Batch
	stmts   []*domain.BankStatementEntry

	nextJournalID   int64
	nextEntryID     int64
	nextBatchID     int64
	nextStatementID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ints:            make(map[string]int64),
		strs:            make(map[string]string),
		acct:            make(map[int64]*domain.Account),
		jrnls:           make(map[int64]*domain.Journal),
		batches:         make(map[int64]*domain.Batch),
		nextJournalID:   1,
		nextEntryID:     1,
		nextBatchID:     1,
		nextStatementID: 1,
	}
}

func (f *fakeStore) GetInt(_ context.Context, name string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.ints[name]
	return v, ok, nil
}

func (f *fakeStore) SetInt(_ context.Context, name string, value int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ints[name] = value
	return nil
}

func (f *fakeStore) GetString(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strs[name]
	return v, ok, nil
}

func (f *fakeStore) SetString(_ context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strs[name] = value
	return nil
}

func (f *fakeStore) AllocateCounter(_ context.Context, name string, floor, ceiling int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, ok := f.ints[name]
	if !ok {
		next = floor
	}
	if next >= ceiling {
		return 0, fmt.Errorf("%w: counter %s", domain.ErrRangeExhausted, name)
	}
	f.ints[name] = next + 1
	return next, nil
}

func (f *fakeStore) Create(_ context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.acct[a.ID]; exists {
		return fmt.Errorf("%w: id %d", domain.ErrAccountExists, a.ID)
	}
	a.CreatedAt = time.Now()
	cp := *a
	f.acct[a.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.acct[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) List(_ context.Context, includeArchived bool) ([]*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Account
	for _, a := range f.acct {
		if a.Archived && !includeArchived {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) SetArchived(_ context.Context, id int64, archived bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.acct[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Archived = archived
	return nil
}

func (f *fakeStore) SetConfidential(_ context.Context, id int64, confidential bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.acct[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Confidential = confidential
	return nil
}

func (f *fakeStore) CreateWithEntries(_ context.Context, j *domain.Journal, entries []*domain.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertJournalLocked(j, entries)
	return nil
}

func (f *fakeStore) CreateBatch(_ context.Context, b *domain.Batch, journals []*domain.Journal, entries [][]*domain.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = f.nextBatchID
	f.nextBatchID++
	cp := *b
	f.batches[b.ID] = &cp
	for i, j := range journals {
		j.BatchID = &b.ID
		f.insertJournalLocked(j, entries[i])
	}
	return nil
}

func (f *fakeStore) insertJournalLocked(j *domain.Journal, entries []*domain.Entry) {
	j.ID = f.nextJournalID
	f.nextJournalID++
	j.CreatedAt = time.Now()
	cp := *j
	f.jrnls[j.ID] = &cp
	for _, e := range entries {
		e.JournalID = j.ID
		e.ID = f.nextEntryID
		f.nextEntryID++
		ecp := *e
		f.entries = append(f.entries, &ecp)
	}
}

func (f *fakeStore) GetBatchByID(_ context.Context, id int64) (*domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) GetJournalByID(_ context.Context, id int64) (*domain.Journal, []*domain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jrnls[id]
	if !ok {
		return nil, nil, domain.ErrJournalNotFound
	}
	jcp := *j
	var out []*domain.Entry
	for _, e := range f.entries {
		if e.JournalID == id {
			ecp := *e
			out = append(out, &ecp)
		}
	}
	return &jcp, out, nil
}

func (f *fakeStore) Balance(_ context.Context, accountID int64, asOf *time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.acct[accountID]; !ok {
		return 0, domain.ErrAccountNotFound
	}
	var sum int64
	for _, e := range f.entries {
		if e.AccountID != accountID {
			continue
		}
		if asOf != nil && f.jrnls[e.JournalID].CreatedAt.After(*asOf) {
			continue
		}
		sum += e.Amount
	}
	return sum, nil
}

func (f *fakeStore) Detail(_ context.Context, accountID int64) (*domain.AccountDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.acct[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	d := &domain.AccountDetail{
		AccountID:   a.ID,
		AccountName: a.Name,
		AccountType: a.Type,
		Timestamp:   time.Now(),
	}
	for _, e := range f.entries {
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

func (f *fakeStore) Summaries(ctx context.Context, includeArchived bool) ([]*domain.AccountSummary, error) {
	accounts, err := f.List(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.AccountSummary
	for _, a := range accounts {
		s := &domain.AccountSummary{
			AccountID:   a.ID,
			AccountName: a.Name,
			AccountType: a.Type,
			Archived:    a.Archived,
		}
		for _, e := range f.entries {
			if e.AccountID == a.ID {
				s.Balance += e.Amount
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) Entries(_ context.Context, accountID, afterID int64, limit int) ([]*domain.LedgerLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []*domain.LedgerLine
	for _, e := range f.entries {
		if e.AccountID != accountID || e.ID <= afterID {
			continue
		}
		j := f.jrnls[e.JournalID]
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

func (f *fakeStore) CreateMany(_ context.Context, lines []*domain.BankStatementEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range lines {
		l.ID = f.nextStatementID
		f.nextStatementID++
		cp := *l
		f.stmts = append(f.stmts, &cp)
	}
	return nil
}

func (f *fakeStore) ListByAccount(_ context.Context, accountID int64) ([]*domain.BankStatementEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.BankStatementEntry
	for _, l := range f.stmts {
		if l.AccountID == accountID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

type journalStore struct {
	*fakeStore
}

func (s journalStore) GetByID(ctx context.Context, id int64) (*domain.Journal, []*domain.Entry, error) {
	return s.fakeStore.GetJournalByID(ctx, id)
}

func newTestRouter(t *testing.T) (*fakeStore, http.Handler) {
	t.Helper()
	store := newFakeStore()
	log := zap.NewNop()

	accountUC := usecase.NewAccountUsecase(store, usecase.NewNumberAllocator(store), nil, log)
	journalUC := usecase.NewJournalUsecase(journalStore{store}, store, nil, nil, log)
	ledgerUC := usecase.NewLedgerUsecase(store, store, nil, log)
	reconcileUC := usecase.NewReconcileUsecase(store, store, store, log)

	h := NewLedgerRestHandler(accountUC, journalUC, ledgerUC, reconcileUC, store, log)
	return store, h.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAccountNew(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/account/new", map[string]any{
		"account_name": "Client A",
		"account_type": "CurrentLiability",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "00000200", resp["account_id"])
	assert.Equal(t, "Client A", resp["account_name"])
	assert.Equal(t, "CurrentLiability", resp["account_type"])
}

func TestAccountNewInvalidType(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/account/new", map[string]any{
		"account_name": "Warehouse",
		"account_type": "Inventory",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountNewExplicitIDOutOfRange(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/account/new", map[string]any{
		"account_id":   500,
		"account_name": "Misfiled",
		"account_type": "Cash",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountNewDuplicate(t *testing.T) {
	_, router := newTestRouter(t)

	body := map[string]any{
		"account_id":   110,
		"account_name": "Petty cash",
		"account_type": "Cash",
	}
	rec := doJSON(t, router, http.MethodPost, "/api/v1/account/new", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/account/new", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAccountList(t *testing.T) {
	store, router := newTestRouter(t)
	seedAccounts(t, store)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/account/list", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[accountListResponse](t, rec)
	require.Len(t, resp.Accounts, 2)
	assert.Equal(t, "00000100", resp.Accounts[0].ID)
	assert.Equal(t, "00000200", resp.Accounts[1].ID)
}

func TestAccountListHidesArchived(t *testing.T) {
	store, router := newTestRouter(t)
	seedAccounts(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/account/00000200/archive", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/account/list", nil)
	resp := decode[accountListResponse](t, rec)
	require.Len(t, resp.Accounts, 1)
	assert.Equal(t, "00000100", resp.Accounts[0].ID)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/account/list?include_archived=1", nil)
	resp = decode[accountListResponse](t, rec)
	assert.Len(t, resp.Accounts, 2)
}

func TestAccountDetail(t *testing.T) {
	store, router := newTestRouter(t)
	seedAccounts(t, store)
	postJournal(t, router, "invoice", 100, 200, 1500)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/account/00000100", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[accountDetailResponse](t, rec)
	assert.Equal(t, "00000100", resp.AccountID)
	assert.Equal(t, int64(1500), resp.TotalDebits)
	assert.Equal(t, int64(0), resp.TotalCredits)
	assert.Equal(t, int64(1500), resp.Balance)
}

func TestAccountDetailNotFound(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/v1/account/00000199", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJournalNew(t *testing.T) {
	store, router := newTestRouter(t)
	seedAccounts(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/journal/new", map[string]any{
		"unstructured_narrative": "Invoice 42",
		"entries": []map[string]any{
			{"account": 100, "amount": 10},
			{"account": 200, "amount": -10},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[map[string]any](t, rec)
	assert.NotZero(t, resp["journal_id"])
	assert.Equal(t, "Invoice 42", resp["unstructured_narrative"])
}

func TestJournalNewUnbalanced(t *testing.T) {
	store, router := newTestRouter(t)
	seedAccounts(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/journal/new", map[string]any{
		"unstructured_narrative": "bad",
		"entries": []map[string]any{
			{"account": 100, "amount": 5},
			{"account": 200, "amount": -3},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, len(store.jrnls))
}

func TestJournalNewUnknownBatch(t *testing.T) {
	store, router := newTestRouter(t)
	seedAccounts(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/journal/new", map[string]any{
		"unstructured_narrative": "into missing batch",
		"batch_id":               9,
		"entries": []map[string]any{
			{"account": 100, "amount": 10},
			{"account": 200, "amount": -10},
		},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, len(store.jrnls))
}

func TestJournalReverse(t *testing.T) {
	store, router := newTestRouter(t)
	seedAccounts(t, store)
	journalID := postJournal(t, router, "original", 100, 200, 250)

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/journal/%d/reverse", journalID), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	detail := doJSON(t, router, http.MethodGet, "/api/v1/account/00000100", nil)
	resp := decode[accountDetailResponse](t, detail)
	assert.Zero(t, resp.Balance)
}

func TestBatchNew(t *testing.T) {
	store, router := newTestRouter(t)
	seedAccounts(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/batch/new", map[string]any{
		"journals": []map[string]any{
			{
				"unstructured_narrative": "first",
				"entries": []map[string]any{
					{"account": 100, "amount": 100},
					{"account": 200, "amount": -100},
				},
			},
			{
				"unstructured_narrative": "second",
				"entries": []map[string]any{
					{"account": 100, "amount": -40},
					{"account": 200, "amount": 40},
				},
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[map[string]any](t, rec)
	ids, ok := resp["journal_ids"].([]any)
	require.True(t, ok)
	assert.Len(t, ids, 2)
}

func TestStatementImportAndReconcile(t *testing.T) {
	store, router := newTestRouter(t)
	seedAccounts(t, store)
	postJournal(t, router, "invoice", 100, 200, 1250)

	csv := "date,amount,narrative\n2026-03-01,12.50,invoice\n2026-03-02,9.99,unknown\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/statement/import?account=100", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	imported := decode[map[string]any](t, rec)
	assert.Equal(t, float64(2), imported["imported"])

	rec = doJSON(t, router, http.MethodPost, "/api/v1/reconcile", map[string]any{"account": 100})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[domain.ReconciliationReport](t, rec)
	assert.NotEmpty(t, report.Reference)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, int64(1250), report.Matches[0].Amount)
	assert.Len(t, report.UnmatchedStatement, 1)
}

func TestReconcileUnknownAccount(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/reconcile", map[string]any{"account": 123})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatementImportCSVRequiresAccount(t *testing.T) {
	_, router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/statement/import", strings.NewReader("2026-03-01,1.00,x\n"))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportBalance(t *testing.T) {
	store, router := newTestRouter(t)
	seedAccounts(t, store)
	require.NoError(t, store.SetString(context.Background(), "entityName", "Test Ledger"))
	postJournal(t, router, "invoice", 100, 200, 1500)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/report/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sheet := decode[usecase.BalanceSheet](t, rec)
	assert.Equal(t, "Test Ledger", sheet.EntityName)
	require.Len(t, sheet.Sections, 6)
	assert.Zero(t, sheet.NetAssets, "assets and liabilities net to zero")
}

func seedAccounts(t *testing.T, store *fakeStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.Account{ID: 100, Name: "Cash at Bank", Type: domain.AccountTypeCash}))
	require.NoError(t, store.Create(ctx, &domain.Account{ID: 200, Name: "Client A", Type: domain.AccountTypeCurrentLiability}))
}

// postJournal posts a balanced debit/credit pair and returns the journal id.
func postJournal(t *testing.T, router http.Handler, narrative string, debitAccount, creditAccount, amount int64) int64 {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/journal/new", map[string]any{
		"unstructured_narrative": narrative,
		"entries": []map[string]any{
			{"account": debitAccount, "amount": amount},
			{"account": creditAccount, "amount": -amount},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	return int64(resp["journal_id"].(float64))
}
