package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ProfitAndLossAccount represents an income or expense account summary.
type ProfitAndLossAccount struct {
	Code          string
	Name          string
	Amount        decimal.Decimal
	AmountDisplay string
}

// ProfitAndLossSection groups accounts by nature.
type ProfitAndLossSection struct {
	Label        string
	Accounts     []ProfitAndLossAccount
	Total        decimal.Decimal
	TotalDisplay string
}

// ProfitAndLoss contains the structured output for the report, computed
// strictly within one fiscal window.
type ProfitAndLoss struct {
	Income           ProfitAndLossSection
	Expense          ProfitAndLossSection
	NetProfit        decimal.Decimal
	NetProfitDisplay string
}

// BuildProfitAndLoss aggregates window totals into income and expense
// sections. Income accounts contribute their credit balance, expense
// accounts their debit balance.
func BuildProfitAndLoss(accounts []AccountBalance) ProfitAndLoss {
	income := ProfitAndLossSection{Label: "Income"}
	expense := ProfitAndLossSection{Label: "Expense"}

	for _, acc := range accounts {
		switch acc.Type {
		case "INCOME":
			row := ProfitAndLossAccount{Code: acc.Code, Name: acc.Name, Amount: acc.Credit.Sub(acc.Debit)}
			row.AmountDisplay = FormatAmount(row.Amount)
			income.Accounts = append(income.Accounts, row)
			income.Total = income.Total.Add(row.Amount)
		case "EXPENSE":
			row := ProfitAndLossAccount{Code: acc.Code, Name: acc.Name, Amount: acc.Debit.Sub(acc.Credit)}
			row.AmountDisplay = FormatAmount(row.Amount)
			expense.Accounts = append(expense.Accounts, row)
			expense.Total = expense.Total.Add(row.Amount)
		}
	}

	sort.Slice(income.Accounts, func(i, j int) bool { return income.Accounts[i].Code < income.Accounts[j].Code })
	sort.Slice(expense.Accounts, func(i, j int) bool { return expense.Accounts[i].Code < expense.Accounts[j].Code })
	income.TotalDisplay = FormatAmount(income.Total)
	expense.TotalDisplay = FormatAmount(expense.Total)

	net := income.Total.Sub(expense.Total)
	return ProfitAndLoss{
		Income:           income,
		Expense:          expense,
		NetProfit:        net,
		NetProfitDisplay: FormatAmount(net),
	}
}
