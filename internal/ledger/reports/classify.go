// Package reports builds trial-balance and financial-statement projections
// from aggregated account balances. Classification is a pure function of the
// account code: an ordered list of prefix rules, first match wins.
package reports

import "strings"

// Bucket names a statement line grouping.
type Bucket string

const (
	BucketCurrentAssets      Bucket = "CURRENT_ASSETS"
	BucketFixedAssets        Bucket = "FIXED_ASSETS"
	BucketCurrentLiabilities Bucket = "CURRENT_LIABILITIES"
	BucketFixedLiabilities   Bucket = "FIXED_LIABILITIES"
	BucketEquity             Bucket = "EQUITY"

	BucketSalesRevenue        Bucket = "SALES_REVENUE"
	BucketCostOfSales         Bucket = "COST_OF_SALES"
	BucketSellingGeneralAdmin Bucket = "SELLING_GENERAL_ADMIN"
	BucketNonOperatingIncome  Bucket = "NON_OPERATING_INCOME"
	BucketNonOperatingExpense Bucket = "NON_OPERATING_EXPENSE"
	BucketExtraordinaryIncome Bucket = "EXTRAORDINARY_INCOME"
	BucketExtraordinaryLoss   Bucket = "EXTRAORDINARY_LOSS"
)

// Rule maps an account-code prefix to a bucket.
type Rule struct {
	Prefix string
	Bucket Bucket
}

// DefaultRules is the standard chart-of-accounts layout: 1xxx assets
// (11/12/13 current), 2xxx liabilities (21/22 current), 3xxx equity,
// 4xxx revenue, 5xxx cost of sales, 6xxx SG&A, 7xxx non-operating income,
// 81xx non-operating expense, 82xx extraordinary income, other 8xxx
// extraordinary loss. Longer prefixes come first so they win.
var DefaultRules = []Rule{
	{Prefix: "11", Bucket: BucketCurrentAssets},
	{Prefix: "12", Bucket: BucketCurrentAssets},
	{Prefix: "13", Bucket: BucketCurrentAssets},
	{Prefix: "1", Bucket: BucketFixedAssets},
	{Prefix: "21", Bucket: BucketCurrentLiabilities},
	{Prefix: "22", Bucket: BucketCurrentLiabilities},
	{Prefix: "2", Bucket: BucketFixedLiabilities},
	{Prefix: "3", Bucket: BucketEquity},
	{Prefix: "4", Bucket: BucketSalesRevenue},
	{Prefix: "5", Bucket: BucketCostOfSales},
	{Prefix: "6", Bucket: BucketSellingGeneralAdmin},
	{Prefix: "7", Bucket: BucketNonOperatingIncome},
	{Prefix: "81", Bucket: BucketNonOperatingExpense},
	{Prefix: "82", Bucket: BucketExtraordinaryIncome},
	{Prefix: "8", Bucket: BucketExtraordinaryLoss},
}

// Classify resolves an account code against the rules in order.
func Classify(code string, rules []Rule) (Bucket, bool) {
	for _, rule := range rules {
		if strings.HasPrefix(code, rule.Prefix) {
			return rule.Bucket, true
		}
	}
	return "", false
}
