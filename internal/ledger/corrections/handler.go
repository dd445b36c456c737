package corrections

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/journals"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// Handler wires the red-slip/black-slip endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	jobs      *jobs.Client
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, jobsClient *jobs.Client) *Handler {
	return &Handler{logger: logger, service: service, jobs: jobsClient, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{voucherNumber}/cancel", h.Cancel)
	r.Post("/{voucherNumber}/correct", h.Correct)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	redNumber, err := h.service.Cancel(r.Context(), chi.URLParam(r, "voucherNumber"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.enqueueProjection(r, redNumber)
	httpx.JSON(w, http.StatusCreated, map[string]string{
		"red_slip_voucher_number": redNumber,
	})
}

type correctRequest struct {
	PostingDate    string               `json:"posting_date" validate:"required,datetime=2006-01-02"`
	EmployeeCode   string               `json:"employee_code"`
	DepartmentCode string               `json:"department_code"`
	Lines          []correctLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type correctLineRequest struct {
	Summary string                `json:"summary"`
	Entries []correctEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

type correctEntryRequest struct {
	Side           string `json:"side" validate:"required,oneof=DEBIT CREDIT"`
	AccountCode    string `json:"account_code" validate:"required"`
	SubAccountCode string `json:"sub_account_code"`
	DepartmentCode string `json:"department_code"`
	ProjectCode    string `json:"project_code"`
	Amount         string `json:"amount" validate:"required"`
}

func (req correctRequest) toInput() (journals.CreateInput, error) {
	postingDate, err := time.Parse("2006-01-02", req.PostingDate)
	if err != nil {
		return journals.CreateInput{}, err
	}
	in := journals.CreateInput{
		PostingDate:    postingDate,
		EmployeeCode:   req.EmployeeCode,
		DepartmentCode: req.DepartmentCode,
	}
	for _, line := range req.Lines {
		lineIn := journals.LineInput{Summary: line.Summary}
		for _, entry := range line.Entries {
			amount, err := decimal.NewFromString(entry.Amount)
			if err != nil {
				return journals.CreateInput{}, err
			}
			lineIn.Entries = append(lineIn.Entries, journals.EntryInput{
				Side:           journals.EntrySide(entry.Side),
				AccountCode:    entry.AccountCode,
				SubAccountCode: entry.SubAccountCode,
				DepartmentCode: entry.DepartmentCode,
				ProjectCode:    entry.ProjectCode,
				Amount:         amount,
			})
		}
		in.Lines = append(in.Lines, lineIn)
	}
	return in, nil
}

func (h *Handler) Correct(w http.ResponseWriter, r *http.Request) {
	var req correctRequest
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

	result, err := h.service.Correct(r.Context(), chi.URLParam(r, "voucherNumber"), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.enqueueProjection(r, result.RedSlipVoucherNumber)
	h.enqueueProjection(r, result.BlackSlipVoucherNumber)
	httpx.JSON(w, http.StatusCreated, map[string]string{
		"red_slip_voucher_number":   result.RedSlipVoucherNumber,
		"black_slip_voucher_number": result.BlackSlipVoucherNumber,
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
