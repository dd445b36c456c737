package balances

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// Handler wires the balance and report JSON endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	jobs    *jobs.Client
}

func NewHandler(logger *slog.Logger, service *Service, jobsClient *jobs.Client) *Handler {
	return &Handler{logger: logger, service: service, jobs: jobsClient}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/daily", h.DailyReport)
	r.Get("/monthly", h.ListMonthly)
	r.Get("/monthly/by-account", h.ListMonthlyByAccount)
	r.Post("/monthly/rollup", h.TriggerRollup)
	r.Get("/reports/trial-balance", h.TrialBalance)
	r.Get("/reports/balance-sheet", h.BalanceSheet)
	r.Get("/reports/income-statement", h.IncomeStatement)
}

func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	postingDate, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be YYYY-MM-DD")
		return
	}
	rows, err := h.service.DailyReport(r.Context(), postingDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDailyResponses(rows))
}

func (h *Handler) ListMonthly(w http.ResponseWriter, r *http.Request) {
	fiscalYear, month, ok := periodParams(w, r)
	if !ok {
		return
	}
	rows, err := h.service.ListMonthly(r.Context(), fiscalYear, month)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMonthlyResponses(rows))
}

func (h *Handler) ListMonthlyByAccount(w http.ResponseWriter, r *http.Request) {
	fiscalYear, err := strconv.Atoi(r.URL.Query().Get("fiscal_year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "fiscal_year must be an integer")
		return
	}
	rows, err := h.service.ListMonthlyByAccountCode(r.Context(), fiscalYear, r.URL.Query().Get("account_code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMonthlyResponses(rows))
}

// TriggerRollup enqueues the monthly rollup for async execution. When no
// queue is configured the rollup runs inline.
func (h *Handler) TriggerRollup(w http.ResponseWriter, r *http.Request) {
	fiscalYear, month, ok := periodParams(w, r)
	if !ok {
		return
	}
	carryForward := r.URL.Query().Get("carry_forward") == "true"

	if h.jobs == nil {
		affected, err := h.service.AggregateMonthly(r.Context(), fiscalYear, month)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		var carried int64
		if carryForward {
			carried, err = h.service.CarryForward(r.Context(), fiscalYear, month)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]int64{"aggregated": affected, "carried": carried})
		return
	}

	_, err := h.jobs.EnqueueMonthlyRollup(r.Context(), jobs.MonthlyRollupPayload{
		FiscalYear:   fiscalYear,
		Month:        month,
		CarryForward: carryForward,
	})
	if err != nil {
		h.logger.Error("enqueue monthly rollup",
			slog.Int("fiscal_year", fiscalYear), slog.Int("month", month), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	fiscalYear, month, ok := periodParams(w, r)
	if !ok {
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), fiscalYear, month)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	fiscalYear, month, ok := periodParams(w, r)
	if !ok {
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), fiscalYear, month)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	fiscalYear, month, ok := periodParams(w, r)
	if !ok {
		return
	}
	is, err := h.service.IncomeStatement(r.Context(), fiscalYear, month)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, is)
}

func periodParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	fiscalYear, err := strconv.Atoi(r.URL.Query().Get("fiscal_year"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "fiscal_year must be an integer")
		return 0, 0, false
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "month must be an integer")
		return 0, 0, false
	}
	return fiscalYear, month, true
}

type dailyResponse struct {
	PostingDate        string `json:"posting_date"`
	AccountCode        string `json:"account_code"`
	SubAccountCode     string `json:"sub_account_code,omitempty"`
	DepartmentCode     string `json:"department_code,omitempty"`
	ProjectCode        string `json:"project_code,omitempty"`
	ClosingJournalFlag bool   `json:"closing_journal_flag"`
	DebitAmount        string `json:"debit_amount"`
	CreditAmount       string `json:"credit_amount"`
	Version            int64  `json:"version"`
}

type monthlyResponse struct {
	FiscalYear         int    `json:"fiscal_year"`
	Month              int    `json:"month"`
	AccountCode        string `json:"account_code"`
	SubAccountCode     string `json:"sub_account_code,omitempty"`
	DepartmentCode     string `json:"department_code,omitempty"`
	ProjectCode        string `json:"project_code,omitempty"`
	ClosingJournalFlag bool   `json:"closing_journal_flag"`
	OpeningBalance     string `json:"opening_balance"`
	DebitAmount        string `json:"debit_amount"`
	CreditAmount       string `json:"credit_amount"`
	Version            int64  `json:"version"`
}

func toDailyResponses(rows []Daily) []dailyResponse {
	out := make([]dailyResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, dailyResponse{
			PostingDate:        row.PostingDate.Format("2006-01-02"),
			AccountCode:        row.Key.AccountCode,
			SubAccountCode:     row.Key.SubAccountCode,
			DepartmentCode:     row.Key.DepartmentCode,
			ProjectCode:        row.Key.ProjectCode,
			ClosingJournalFlag: row.Key.ClosingJournalFlag,
			DebitAmount:        row.DebitAmount.String(),
			CreditAmount:       row.CreditAmount.String(),
			Version:            row.Version,
		})
	}
	return out
}

func toMonthlyResponses(rows []Monthly) []monthlyResponse {
	out := make([]monthlyResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, monthlyResponse{
			FiscalYear:         row.FiscalYear,
			Month:              row.Month,
			AccountCode:        row.Key.AccountCode,
			SubAccountCode:     row.Key.SubAccountCode,
			DepartmentCode:     row.Key.DepartmentCode,
			ProjectCode:        row.Key.ProjectCode,
			ClosingJournalFlag: row.Key.ClosingJournalFlag,
			OpeningBalance:     row.OpeningBalance.String(),
			DebitAmount:        row.DebitAmount.String(),
			CreditAmount:       row.CreditAmount.String(),
			Version:            row.Version,
		})
	}
	return out
}
