package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BalanceSheetAccount summarises an account for assets, liabilities, or equity.
type BalanceSheetAccount struct {
	Code           string
	Name           string
	Balance        decimal.Decimal
	BalanceDisplay string
}

// BalanceSheetSection contains the accounts and totals for a classification.
type BalanceSheetSection struct {
	Label        string
	Accounts     []BalanceSheetAccount
	Total        decimal.Decimal
	TotalDisplay string
}

// BalanceSheet is the structured response for the balance sheet report.
// Balanced is true iff assets equal liabilities plus equity within the
// ledger tolerance.
type BalanceSheet struct {
	Assets      BalanceSheetSection
	Liabilities BalanceSheetSection
	Equity      BalanceSheetSection
	Balanced    bool
}

// BuildBalanceSheet aggregates normalized balances into assets,
// liabilities, and equity sections. Income and expense accounts are
// excluded; they belong to the P&L until year close folds them into
// retained earnings.
func BuildBalanceSheet(accounts []AccountBalance) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets"}
	liabilities := BalanceSheetSection{Label: "Liabilities"}
	equity := BalanceSheetSection{Label: "Equity"}

	for _, acc := range accounts {
		row := BalanceSheetAccount{Code: acc.Code, Name: acc.Name, Balance: acc.Net()}
		row.BalanceDisplay = FormatAmount(row.Balance)
		switch acc.Type {
		case "ASSET":
			assets.Accounts = append(assets.Accounts, row)
			assets.Total = assets.Total.Add(row.Balance)
		case "LIABILITY":
			liabilities.Accounts = append(liabilities.Accounts, row)
			liabilities.Total = liabilities.Total.Add(row.Balance)
		case "EQUITY":
			equity.Accounts = append(equity.Accounts, row)
			equity.Total = equity.Total.Add(row.Balance)
		}
	}

	sort.Slice(assets.Accounts, func(i, j int) bool { return assets.Accounts[i].Code < assets.Accounts[j].Code })
	sort.Slice(liabilities.Accounts, func(i, j int) bool { return liabilities.Accounts[i].Code < liabilities.Accounts[j].Code })
	sort.Slice(equity.Accounts, func(i, j int) bool { return equity.Accounts[i].Code < equity.Accounts[j].Code })
	assets.TotalDisplay = FormatAmount(assets.Total)
	liabilities.TotalDisplay = FormatAmount(liabilities.Total)
	equity.TotalDisplay = FormatAmount(equity.Total)

	diff := assets.Total.Sub(liabilities.Total.Add(equity.Total))
	return BalanceSheet{
		Assets:      assets,
		Liabilities: liabilities,
		Equity:      equity,
		Balanced:    diff.Abs().LessThan(tolerance),
	}
}
