package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BalanceSheetAccount summarises an account within a section.
type BalanceSheetAccount struct {
	Code    string
	Name    string
	Balance decimal.Decimal
}

// BalanceSheetSection contains the accounts and total for a classification.
type BalanceSheetSection struct {
	Label    string
	Accounts []BalanceSheetAccount
	Total    decimal.Decimal
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	CurrentAssets             BalanceSheetSection
	FixedAssets               BalanceSheetSection
	CurrentLiabilities        BalanceSheetSection
	FixedLiabilities          BalanceSheetSection
	Equity                    BalanceSheetSection
	TotalAssets               decimal.Decimal
	TotalLiabilities          decimal.Decimal
	TotalLiabilitiesAndEquity decimal.Decimal
}

// BuildBalanceSheet classifies closing balances into balance sheet sections
// by account-code prefix. Accounts outside the balance sheet buckets are
// skipped.
func BuildBalanceSheet(accounts []AccountBalance, rules []Rule) BalanceSheet {
	currentAssets := BalanceSheetSection{Label: "Current assets"}
	fixedAssets := BalanceSheetSection{Label: "Fixed assets"}
	currentLiabilities := BalanceSheetSection{Label: "Current liabilities"}
	fixedLiabilities := BalanceSheetSection{Label: "Fixed liabilities"}
	equity := BalanceSheetSection{Label: "Equity"}

	for _, acc := range accounts {
		bucket, ok := Classify(acc.Code, rules)
		if !ok {
			continue
		}
		row := BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: acc.Closing()}
		switch bucket {
		case BucketCurrentAssets:
			currentAssets.Accounts = append(currentAssets.Accounts, row)
			currentAssets.Total = currentAssets.Total.Add(row.Balance)
		case BucketFixedAssets:
			fixedAssets.Accounts = append(fixedAssets.Accounts, row)
			fixedAssets.Total = fixedAssets.Total.Add(row.Balance)
		case BucketCurrentLiabilities:
			currentLiabilities.Accounts = append(currentLiabilities.Accounts, row)
			currentLiabilities.Total = currentLiabilities.Total.Add(row.Balance)
		case BucketFixedLiabilities:
			fixedLiabilities.Accounts = append(fixedLiabilities.Accounts, row)
			fixedLiabilities.Total = fixedLiabilities.Total.Add(row.Balance)
		case BucketEquity:
			equity.Accounts = append(equity.Accounts, row)
			equity.Total = equity.Total.Add(row.Balance)
		}
	}

	for _, section := range []*BalanceSheetSection{&currentAssets, &fixedAssets, &currentLiabilities, &fixedLiabilities, &equity} {
		accounts := section.Accounts
		sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	}

	totalAssets := currentAssets.Total.Add(fixedAssets.Total)
	totalLiabilities := currentLiabilities.Total.Add(fixedLiabilities.Total)
	return BalanceSheet{
		CurrentAssets:             currentAssets,
		FixedAssets:               fixedAssets,
		CurrentLiabilities:        currentLiabilities,
		FixedLiabilities:          fixedLiabilities,
		Equity:                    equity,
		TotalAssets:               totalAssets,
		TotalLiabilities:          totalLiabilities,
		TotalLiabilitiesAndEquity: totalLiabilities.Add(equity.Total),
	}
}
