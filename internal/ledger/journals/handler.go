package journals

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// Handler wires the journal JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	importer  *Importer
	jobs      *jobs.Client
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, jobsClient *jobs.Client) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		importer:  NewImporter(service),
		jobs:      jobsClient,
		validator: validator.New(),
	}
}

type entryRequest struct {
	Side           string `json:"side" validate:"required,oneof=DEBIT CREDIT"`
	AccountCode    string `json:"account_code" validate:"required"`
	SubAccountCode string `json:"sub_account_code"`
	DepartmentCode string `json:"department_code"`
	ProjectCode    string `json:"project_code"`
	SegmentCode    string `json:"segment_code"`
	Amount         string `json:"amount" validate:"required"`
	CurrencyCode   string `json:"currency_code"`
	TaxType        string `json:"tax_type"`
	TaxRate        string `json:"tax_rate"`
}

type lineRequest struct {
	Summary string         `json:"summary"`
	Entries []entryRequest `json:"entries" validate:"required,min=1,dive"`
}

type createRequest struct {
	PostingDate         string        `json:"posting_date" validate:"required,datetime=2006-01-02"`
	EntryDate           string        `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	VoucherType         string        `json:"voucher_type" validate:"omitempty,oneof=NORMAL OPENING CLOSING ADJUSTMENT"`
	ClosingJournalFlag  bool          `json:"closing_journal_flag"`
	SingleEntryFlag     bool          `json:"single_entry_flag"`
	PeriodicPostingFlag bool          `json:"periodic_posting_flag"`
	EmployeeCode        string        `json:"employee_code"`
	DepartmentCode      string        `json:"department_code"`
	Lines               []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type updateHeaderRequest struct {
	EmployeeCode   string `json:"employee_code"`
	DepartmentCode string `json:"department_code"`
	Version        int64  `json:"version" validate:"required,min=1"`
}

func (req createRequest) toInput() (CreateInput, error) {
	postingDate, err := time.Parse("2006-01-02", req.PostingDate)
	if err != nil {
		return CreateInput{}, err
	}
	in := CreateInput{
		PostingDate:         postingDate,
		VoucherType:         VoucherType(req.VoucherType),
		ClosingJournalFlag:  req.ClosingJournalFlag,
		SingleEntryFlag:     req.SingleEntryFlag,
		PeriodicPostingFlag: req.PeriodicPostingFlag,
		EmployeeCode:        req.EmployeeCode,
		DepartmentCode:      req.DepartmentCode,
	}
	if req.EntryDate != "" {
		in.EntryDate, err = time.Parse("2006-01-02", req.EntryDate)
		if err != nil {
			return CreateInput{}, err
		}
	}
	for _, line := range req.Lines {
		lineIn := LineInput{Summary: line.Summary}
		for _, entry := range line.Entries {
			amount, err := decimal.NewFromString(entry.Amount)
			if err != nil {
				return CreateInput{}, err
			}
			entryIn := EntryInput{
				Side:           EntrySide(entry.Side),
				AccountCode:    entry.AccountCode,
				SubAccountCode: entry.SubAccountCode,
				DepartmentCode: entry.DepartmentCode,
				ProjectCode:    entry.ProjectCode,
				SegmentCode:    entry.SegmentCode,
				Amount:         amount,
				CurrencyCode:   entry.CurrencyCode,
				TaxType:        entry.TaxType,
			}
			if entry.TaxRate != "" {
				entryIn.TaxRate, err = decimal.NewFromString(entry.TaxRate)
				if err != nil {
					return CreateInput{}, err
				}
			}
			lineIn.Entries = append(lineIn.Entries, entryIn)
		}
		in.Lines = append(in.Lines, lineIn)
	}
	return in, nil
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	journal, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.enqueueProjection(r, journal.VoucherNumber)
	httpx.JSON(w, http.StatusCreated, toJournalResponse(journal))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	journal, err := h.service.Get(r.Context(), chi.URLParam(r, "voucherNumber"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toJournalResponse(journal))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if accountCode := r.URL.Query().Get("account_code"); accountCode != "" {
		journals, err := h.service.ListByAccountCode(r.Context(), accountCode)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toJournalResponses(journals))
		return
	}

	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "to must be YYYY-MM-DD")
		return
	}
	journals, err := h.service.ListByPostingDateRange(r.Context(), from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toJournalResponses(journals))
}

func (h *Handler) UpdateHeader(w http.ResponseWriter, r *http.Request) {
	var req updateHeaderRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err := h.service.UpdateHeader(r.Context(), UpdateHeaderInput{
		VoucherNumber:  chi.URLParam(r, "voucherNumber"),
		EmployeeCode:   req.EmployeeCode,
		DepartmentCode: req.DepartmentCode,
		Version:        req.Version,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "voucherNumber")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import accepts a CSV body and posts one journal per slip group.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	summary, err := h.importer.Import(r.Context(), r.Body)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Import Failed", err.Error())
		return
	}
	for _, voucherNumber := range summary.Posted {
		h.enqueueProjection(r, voucherNumber)
	}

	failed := make([]map[string]string, 0, len(summary.Failed))
	for _, f := range summary.Failed {
		failed = append(failed, map[string]string{"slip": f.Slip, "error": f.Err.Error()})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"posted": summary.Posted,
		"failed": failed,
	})
}

func (h *Handler) enqueueProjection(r *http.Request, voucherNumber string) {
	if h.jobs == nil {
		return
	}
	_, err := h.jobs.EnqueueJournalProjection(r.Context(), jobs.JournalProjectionPayload{VoucherNumber: voucherNumber})
	if err != nil {
		h.logger.Error("enqueue journal projection",
			slog.String("voucher_number", voucherNumber), slog.Any("error", err))
	}
}
