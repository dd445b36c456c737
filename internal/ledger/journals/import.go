package journals

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// importColumns are the required CSV columns, one entry per row. Rows sharing
// a slip value are posted as one journal; rows sharing a slip and summary
// become one line. sub_account_code, department_code, and project_code are
// optional.
var importColumns = []string{"slip", "posting_date", "summary", "side", "account_code", "amount"}

// ImportError records why one slip group could not be posted.
type ImportError struct {
	Slip string
	Err  error
}

// ImportSummary reports the outcome of a CSV import run.
type ImportSummary struct {
	Posted []string
	Failed []ImportError
}

// Importer posts journals parsed from CSV through the journal engine, so
// imported journals face the same validation and balance check as API posts.
type Importer struct {
	svc *Service
}

func NewImporter(svc *Service) *Importer {
	return &Importer{svc: svc}
}

type importGroup struct {
	slip  string
	input CreateInput
	// line index by summary, preserving first-seen order
	lineIndex map[string]int
}

// Import reads the CSV and posts one journal per slip group. A malformed file
// aborts the run; a slip that fails to post is recorded and the run continues.
func (imp *Importer) Import(ctx context.Context, r io.Reader) (ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ImportSummary{}, nil
		}
		return ImportSummary{}, err
	}
	indexes, err := resolveColumns(header)
	if err != nil {
		return ImportSummary{}, err
	}

	groups := make(map[string]*importGroup)
	var order []string
	rowNumber := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ImportSummary{}, err
		}
		rowNumber++
		if err := appendRow(groups, &order, indexes, record, rowNumber); err != nil {
			return ImportSummary{}, err
		}
	}

	var summary ImportSummary
	for _, slip := range order {
		group := groups[slip]
		journal, err := imp.svc.Create(ctx, group.input)
		if err != nil {
			summary.Failed = append(summary.Failed, ImportError{Slip: slip, Err: err})
			continue
		}
		summary.Posted = append(summary.Posted, journal.VoucherNumber)
	}
	return summary, nil
}

func resolveColumns(header []string) (map[string]int, error) {
	indexes := make(map[string]int)
	for i, col := range header {
		indexes[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range importColumns {
		if _, ok := indexes[col]; !ok {
			return nil, fmt.Errorf("journal import: missing column %q", col)
		}
	}
	return indexes, nil
}

func appendRow(groups map[string]*importGroup, order *[]string, indexes map[string]int, record []string, rowNumber int) error {
	field := func(name string) string {
		i, ok := indexes[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	slip := field("slip")
	if slip == "" {
		return fmt.Errorf("journal import: row %d: slip is required", rowNumber)
	}
	postingDate, err := time.Parse("2006-01-02", field("posting_date"))
	if err != nil {
		return fmt.Errorf("journal import: row %d: bad posting_date: %w", rowNumber, err)
	}
	amount, err := decimal.NewFromString(field("amount"))
	if err != nil {
		return fmt.Errorf("journal import: row %d: bad amount: %w", rowNumber, err)
	}
	side := EntrySide(strings.ToUpper(field("side")))
	if !side.Valid() {
		return fmt.Errorf("journal import: row %d: bad side %q", rowNumber, field("side"))
	}

	group, ok := groups[slip]
	if !ok {
		group = &importGroup{
			slip:      slip,
			input:     CreateInput{PostingDate: postingDate},
			lineIndex: make(map[string]int),
		}
		groups[slip] = group
		*order = append(*order, slip)
	}
	if !group.input.PostingDate.Equal(postingDate) {
		return fmt.Errorf("journal import: row %d: slip %s mixes posting dates", rowNumber, slip)
	}

	summary := field("summary")
	li, ok := group.lineIndex[summary]
	if !ok {
		group.input.Lines = append(group.input.Lines, LineInput{Summary: summary})
		li = len(group.input.Lines) - 1
		group.lineIndex[summary] = li
	}
	group.input.Lines[li].Entries = append(group.input.Lines[li].Entries, EntryInput{
		Side:           side,
		AccountCode:    field("account_code"),
		SubAccountCode: field("sub_account_code"),
		DepartmentCode: field("department_code"),
		ProjectCode:    field("project_code"),
		Amount:         amount,
	})
	return nil
}
