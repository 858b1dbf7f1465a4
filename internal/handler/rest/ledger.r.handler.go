package hrest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/importer"
	"ledger-service/internal/repository"
	"ledger-service/internal/usecase"
)

// LedgerRestHandler exposes the ledger engine over /api/v1.
type LedgerRestHandler struct {
	accountUC   *usecase.AccountUsecase
	journalUC   *usecase.JournalUsecase
	ledgerUC    *usecase.LedgerUsecase
	reconcileUC *usecase.ReconcileUsecase
	statements  repository.StatementRepository
	log         *zap.Logger
}

func NewLedgerRestHandler(
	accountUC *usecase.AccountUsecase,
	journalUC *usecase.JournalUsecase,
	ledgerUC *usecase.LedgerUsecase,
	reconcileUC *usecase.ReconcileUsecase,
	statements repository.StatementRepository,
	log *zap.Logger,
) *LedgerRestHandler {
	return &LedgerRestHandler{
		accountUC:   accountUC,
		journalUC:   journalUC,
		ledgerUC:    ledgerUC,
		reconcileUC: reconcileUC,
		statements:  statements,
		log:         log,
	}
}

// Router builds the chi router with the standard middleware stack.
func (h *LedgerRestHandler) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	h.registerRoutes(r)
	return r
}

func (h *LedgerRestHandler) registerRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/account/list", h.AccountList)
		r.Post("/account/new", h.AccountNew)
		r.Get("/account/{account_id}", h.AccountDetail)
		r.Get("/account/{account_id}/entries", h.AccountEntries)
		r.Post("/account/{account_id}/archive", h.AccountArchive)
		r.Post("/account/{account_id}/unarchive", h.AccountUnarchive)
		r.Post("/account/{account_id}/confidential", h.AccountConfidential)

		r.Post("/journal/new", h.JournalNew)
		r.Post("/journal/{journal_id}/reverse", h.JournalReverse)
		r.Post("/batch/new", h.BatchNew)

		r.Post("/statement/import", h.StatementImport)
		r.Post("/reconcile", h.Reconcile)
		r.Get("/report/balance", h.ReportBalance)
	})
}

func (h *LedgerRestHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

// fmtAccountID renders account ids as zero-padded 8-digit strings, the wire
// form used everywhere in the JSON surface.
func fmtAccountID(id int64) string {
	return fmt.Sprintf("%08d", id)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimLeft(chi.URLParam(r, name), "0")
	if raw == "" {
		raw = "0"
	}
	return strconv.ParseInt(raw, 10, 64)
}

// ---- accounts ----

type accountListAccount struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Balance  int64  `json:"balance"`
	Archived bool   `json:"archived"`
}

type accountListResponse struct {
	Accounts  []accountListAccount `json:"accounts"`
	Timestamp time.Time            `json:"timestamp"`
}

func (h *LedgerRestHandler) AccountList(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "1"
	summaries, err := h.ledgerUC.Summaries(r.Context(), includeArchived)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := accountListResponse{Accounts: []accountListAccount{}, Timestamp: time.Now()}
	for _, s := range summaries {
		resp.Accounts = append(resp.Accounts, accountListAccount{
			ID:       fmtAccountID(s.AccountID),
			Name:     s.AccountName,
			Type:     string(s.AccountType),
			Balance:  s.Balance,
			Archived: s.Archived,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

type accountCreateRequest struct {
	AccountID   *int64 `json:"account_id,omitempty"`
	AccountName string `json:"account_name"`
	AccountType string `json:"account_type"`
}

type accountCreateResponse struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	AccountType string `json:"account_type"`
}

func (h *LedgerRestHandler) AccountNew(w http.ResponseWriter, r *http.Request) {
	var in accountCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.accountUC.Create(r.Context(), in.AccountType, in.AccountName, in.AccountID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, accountCreateResponse{
		AccountID:   fmtAccountID(a.ID),
		AccountName: a.Name,
		AccountType: string(a.Type),
	})
}

type accountDetailResponse struct {
	AccountID    string    `json:"account_id"`
	AccountName  string    `json:"account_name"`
	AccountType  string    `json:"account_type"`
	TotalDebits  int64     `json:"total_debits"`
	TotalCredits int64     `json:"total_credits"`
	Balance      int64     `json:"balance"`
	Timestamp    time.Time `json:"timestamp"`
}

func (h *LedgerRestHandler) AccountDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "account_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	// Point-in-time balance when as_of is supplied.
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "as_of must be RFC3339")
			return
		}
		balance, err := h.ledgerUC.Balance(r.Context(), id, &asOf)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"account_id": fmtAccountID(id),
			"balance":    balance,
			"as_of":      asOf,
		})
		return
	}

	d, err := h.ledgerUC.Detail(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accountDetailResponse{
		AccountID:    fmtAccountID(d.AccountID),
		AccountName:  d.AccountName,
		AccountType:  string(d.AccountType),
		TotalDebits:  d.TotalDebits,
		TotalCredits: d.TotalCredits,
		Balance:      d.Balance,
		Timestamp:    d.Timestamp,
	})
}

func (h *LedgerRestHandler) AccountEntries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "account_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	afterID, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	lines, err := h.ledgerUC.Entries(r.Context(), id, afterID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if lines == nil {
		lines = []*domain.LedgerLine{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": lines})
}

func (h *LedgerRestHandler) AccountArchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

func (h *LedgerRestHandler) AccountUnarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *LedgerRestHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	id, err := pathID(r, "account_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	if archived {
		err = h.accountUC.Archive(r.Context(), id)
	} else {
		err = h.accountUC.Unarchive(r.Context(), id)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerRestHandler) AccountConfidential(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "account_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	var in struct {
		Confidential bool `json:"confidential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.accountUC.SetConfidential(r.Context(), id, in.Confidential); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- journals ----

type journalCreateRequest struct {
	UnstructuredNarrative string             `json:"unstructured_narrative"`
	Entries               []domain.EntryLine `json:"entries"`
	BatchID               *int64             `json:"batch_id,omitempty"`
}

type journalCreateResponse struct {
	JournalID int64           `json:"journal_id"`
	BatchID   *int64          `json:"batch_id,omitempty"`
	Narrative string          `json:"unstructured_narrative"`
	Entries   []*domain.Entry `json:"entries"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *LedgerRestHandler) JournalNew(w http.ResponseWriter, r *http.Request) {
	var in journalCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	j, entries, err := h.journalUC.Post(r.Context(), in.UnstructuredNarrative, in.Entries, in.BatchID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, journalCreateResponse{
		JournalID: j.ID,
		BatchID:   j.BatchID,
		Narrative: j.UnstructuredNarrative,
		Entries:   entries,
		CreatedAt: j.CreatedAt,
	})
}

func (h *LedgerRestHandler) JournalReverse(w http.ResponseWriter, r *http.Request) {
	journalID, err := strconv.ParseInt(chi.URLParam(r, "journal_id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid journal id")
		return
	}
	var in struct {
		UnstructuredNarrative string `json:"unstructured_narrative"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	j, entries, err := h.journalUC.Reverse(r.Context(), journalID, in.UnstructuredNarrative)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, journalCreateResponse{
		JournalID: j.ID,
		Narrative: j.UnstructuredNarrative,
		Entries:   entries,
		CreatedAt: j.CreatedAt,
	})
}

type batchCreateRequest struct {
	Date     *time.Time            `json:"date,omitempty"`
	Journals []domain.JournalDraft `json:"journals"`
}

func (h *LedgerRestHandler) BatchNew(w http.ResponseWriter, r *http.Request) {
	var in batchCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date := time.Now()
	if in.Date != nil {
		date = *in.Date
	}

	b, journals, err := h.journalUC.PostBatch(r.Context(), date, in.Journals)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	journalIDs := make([]int64, len(journals))
	for i, j := range journals {
		journalIDs[i] = j.ID
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"batch_id":    b.ID,
		"date":        b.Date,
		"journal_ids": journalIDs,
	})
}

// ---- statements & reconciliation ----

type statementImportRequest struct {
	Account int64                        `json:"account"`
	Lines   []*domain.BankStatementEntry `json:"lines"`
}

// StatementImport accepts either a text/csv body (with ?account= query) or a
// JSON body carrying the lines directly.
func (h *LedgerRestHandler) StatementImport(w http.ResponseWriter, r *http.Request) {
	var lines []*domain.BankStatementEntry

	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		accountID, err := strconv.ParseInt(r.URL.Query().Get("account"), 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "account query parameter required for CSV import")
			return
		}
		lines, err = importer.ParseCSV(r.Body, accountID)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		var in statementImportRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		for _, l := range in.Lines {
			l.AccountID = in.Account
		}
		lines = in.Lines
	}

	if err := h.statements.CreateMany(r.Context(), lines); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"imported": len(lines)})
}

func (h *LedgerRestHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Account int64 `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.reconcileUC.ReconcileStored(r.Context(), in.Account)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *LedgerRestHandler) ReportBalance(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.ledgerUC.BuildBalanceSheet(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sheet)
}

func (h *LedgerRestHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Warn("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	respondDomainError(w, err)
}
