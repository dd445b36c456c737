package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

// taxRate is the flat provision applied to positive pre-tax income.
var taxRate = decimal.RequireFromString("0.3")

// IncomeStatementAccount represents a revenue or expense account summary.
type IncomeStatementAccount struct {
	Code   string
	Name   string
	Amount decimal.Decimal
}

// IncomeStatementSection groups accounts by nature.
type IncomeStatementSection struct {
	Label    string
	Accounts []IncomeStatementAccount
	Total    decimal.Decimal
}

// IncomeStatement contains the stepped income statement: each intermediate
// result carries forward into the next section.
type IncomeStatement struct {
	SalesRevenue        IncomeStatementSection
	CostOfSales         IncomeStatementSection
	GrossProfit         decimal.Decimal
	SellingGeneralAdmin IncomeStatementSection
	OperatingIncome     decimal.Decimal
	NonOperatingIncome  IncomeStatementSection
	NonOperatingExpense IncomeStatementSection
	OrdinaryIncome      decimal.Decimal
	ExtraordinaryIncome IncomeStatementSection
	ExtraordinaryLoss   IncomeStatementSection
	PreTaxIncome        decimal.Decimal
	TaxProvision        decimal.Decimal
	NetIncome           decimal.Decimal
}

// BuildIncomeStatement classifies period activity into income statement
// sections and computes the profit cascade. Revenue-type buckets are
// measured credit minus debit, expense-type buckets debit minus credit.
func BuildIncomeStatement(accounts []AccountBalance, rules []Rule) IncomeStatement {
	sales := IncomeStatementSection{Label: "Sales revenue"}
	cogs := IncomeStatementSection{Label: "Cost of sales"}
	sga := IncomeStatementSection{Label: "Selling, general and administrative"}
	nonOpIncome := IncomeStatementSection{Label: "Non-operating income"}
	nonOpExpense := IncomeStatementSection{Label: "Non-operating expense"}
	extraIncome := IncomeStatementSection{Label: "Extraordinary income"}
	extraLoss := IncomeStatementSection{Label: "Extraordinary loss"}

	sections := map[Bucket]*IncomeStatementSection{
		BucketSalesRevenue:        &sales,
		BucketCostOfSales:         &cogs,
		BucketSellingGeneralAdmin: &sga,
		BucketNonOperatingIncome:  &nonOpIncome,
		BucketNonOperatingExpense: &nonOpExpense,
		BucketExtraordinaryIncome: &extraIncome,
		BucketExtraordinaryLoss:   &extraLoss,
	}
	creditNatured := map[Bucket]bool{
		BucketSalesRevenue:        true,
		BucketNonOperatingIncome:  true,
		BucketExtraordinaryIncome: true,
	}

	for _, acc := range accounts {
		bucket, ok := Classify(acc.Code, rules)
		if !ok {
			continue
		}
		section, ok := sections[bucket]
		if !ok {
			continue
		}
		amount := acc.Debit.Sub(acc.Credit)
		if creditNatured[bucket] {
			amount = acc.Credit.Sub(acc.Debit)
		}
		section.Accounts = append(section.Accounts, IncomeStatementAccount{Code: acc.Code, Name: acc.Name, Amount: amount})
		section.Total = section.Total.Add(amount)
	}

	for _, section := range sections {
		accounts := section.Accounts
		sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	}

	grossProfit := sales.Total.Sub(cogs.Total)
	operatingIncome := grossProfit.Sub(sga.Total)
	ordinaryIncome := operatingIncome.Add(nonOpIncome.Total).Sub(nonOpExpense.Total)
	preTax := ordinaryIncome.Add(extraIncome.Total).Sub(extraLoss.Total)
	tax := decimal.Zero
	if preTax.IsPositive() {
		tax = preTax.Mul(taxRate)
	}

	return IncomeStatement{
		SalesRevenue:        sales,
		CostOfSales:         cogs,
		GrossProfit:         grossProfit,
		SellingGeneralAdmin: sga,
		OperatingIncome:     operatingIncome,
		NonOperatingIncome:  nonOpIncome,
		NonOperatingExpense: nonOpExpense,
		OrdinaryIncome:      ordinaryIncome,
		ExtraordinaryIncome: extraIncome,
		ExtraordinaryLoss:   extraLoss,
		PreTaxIncome:        preTax,
		TaxProvision:        tax,
		NetIncome:           preTax.Sub(tax),
	}
}
