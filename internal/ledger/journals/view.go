package journals

import "time"

// journalResponse is the JSON shape of a journal aggregate. Amounts travel as
// decimal strings.
type journalResponse struct {
	VoucherNumber         string         `json:"voucher_number"`
	PostingDate           string         `json:"posting_date"`
	EntryDate             string         `json:"entry_date"`
	VoucherType           string         `json:"voucher_type"`
	ClosingJournalFlag    bool           `json:"closing_journal_flag"`
	SingleEntryFlag       bool           `json:"single_entry_flag"`
	PeriodicPostingFlag   bool           `json:"periodic_posting_flag"`
	RedSlipFlag           bool           `json:"red_slip_flag"`
	RedBlackVoucherNumber *int64         `json:"red_black_voucher_number,omitempty"`
	ReversalOf            *string        `json:"reversal_of,omitempty"`
	EmployeeCode          string         `json:"employee_code,omitempty"`
	DepartmentCode        string         `json:"department_code,omitempty"`
	Version               int64          `json:"version"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	Lines                 []lineResponse `json:"lines"`
}

type lineResponse struct {
	LineNumber int             `json:"line_number"`
	Summary    string          `json:"summary,omitempty"`
	Entries    []entryResponse `json:"entries"`
}

type entryResponse struct {
	Side           string `json:"side"`
	AccountCode    string `json:"account_code"`
	SubAccountCode string `json:"sub_account_code,omitempty"`
	DepartmentCode string `json:"department_code,omitempty"`
	ProjectCode    string `json:"project_code,omitempty"`
	SegmentCode    string `json:"segment_code,omitempty"`
	Amount         string `json:"amount"`
	CurrencyCode   string `json:"currency_code,omitempty"`
	TaxType        string `json:"tax_type,omitempty"`
	TaxRate        string `json:"tax_rate,omitempty"`
}

func toJournalResponse(journal Journal) journalResponse {
	resp := journalResponse{
		VoucherNumber:         journal.VoucherNumber,
		PostingDate:           journal.PostingDate.Format("2006-01-02"),
		EntryDate:             journal.EntryDate.Format("2006-01-02"),
		VoucherType:           string(journal.VoucherType),
		ClosingJournalFlag:    journal.ClosingJournalFlag,
		SingleEntryFlag:       journal.SingleEntryFlag,
		PeriodicPostingFlag:   journal.PeriodicPostingFlag,
		RedSlipFlag:           journal.RedSlipFlag,
		RedBlackVoucherNumber: journal.RedBlackVoucherNumber,
		ReversalOf:            journal.ReversalOf,
		EmployeeCode:          journal.EmployeeCode,
		DepartmentCode:        journal.DepartmentCode,
		Version:               journal.Version,
		CreatedAt:             journal.CreatedAt,
		UpdatedAt:             journal.UpdatedAt,
	}
	for _, line := range journal.Lines {
		lineResp := lineResponse{LineNumber: line.LineNumber, Summary: line.Summary}
		for _, entry := range line.Entries {
			entryResp := entryResponse{
				Side:           string(entry.Side),
				AccountCode:    entry.AccountCode,
				SubAccountCode: entry.SubAccountCode,
				DepartmentCode: entry.DepartmentCode,
				ProjectCode:    entry.ProjectCode,
				SegmentCode:    entry.SegmentCode,
				Amount:         entry.Amount.String(),
				CurrencyCode:   entry.CurrencyCode,
				TaxType:        entry.TaxType,
			}
			if !entry.TaxRate.IsZero() {
				entryResp.TaxRate = entry.TaxRate.String()
			}
			lineResp.Entries = append(lineResp.Entries, entryResp)
		}
		resp.Lines = append(resp.Lines, lineResp)
	}
	return resp
}

func toJournalResponses(journals []Journal) []journalResponse {
	out := make([]journalResponse, 0, len(journals))
	for _, journal := range journals {
		out = append(out, toJournalResponse(journal))
	}
	return out
}
