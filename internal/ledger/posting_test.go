package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	_ "github.com/pawnbook/pawnbook/testing"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestPostingInputValidateBalanced(t *testing.T) {
	in := PostingInput{
		CompanyID: 1,
		Type:      VoucherTypeJournal,
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		ActorID:   9,
		Entries: []EntryInput{
			{AccountID: 1, Direction: Debit, Amount: d("90000.00")},
			{AccountID: 2, Direction: Credit, Amount: d("88200.00")},
			{AccountID: 3, Direction: Credit, Amount: d("1800.00")},
		},
	}
	require.NoError(t, in.Validate())
}

func TestPostingInputValidateRejectsUnbalanced(t *testing.T) {
	// 0.02 off is outside the 0.01 tolerance.
	in := PostingInput{
		CompanyID: 1,
		Type:      VoucherTypeReceipt,
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Entries: []EntryInput{
			{AccountID: 1, Direction: Debit, Amount: d("500.00")},
			{AccountID: 2, Direction: Credit, Amount: d("499.98")},
		},
	}
	require.ErrorIs(t, in.Validate(), ErrUnbalancedVoucher)
}

func TestPostingInputValidateAcceptsSubTolerance(t *testing.T) {
	in := PostingInput{
		CompanyID: 1,
		Type:      VoucherTypeReceipt,
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Entries: []EntryInput{
			{AccountID: 1, Direction: Debit, Amount: d("500.005")},
			{AccountID: 2, Direction: Credit, Amount: d("500.00")},
		},
	}
	require.NoError(t, in.Validate())
}

func TestPostingInputValidateRejectsEmptyAndNonPositive(t *testing.T) {
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	empty := PostingInput{CompanyID: 1, Type: VoucherTypeJournal, Date: date}
	require.ErrorIs(t, empty.Validate(), ErrEmptyVoucher)

	zero := PostingInput{
		CompanyID: 1,
		Type:      VoucherTypeJournal,
		Date:      date,
		Entries: []EntryInput{
			{AccountID: 1, Direction: Debit, Amount: decimal.Zero},
			{AccountID: 2, Direction: Credit, Amount: decimal.Zero},
		},
	}
	require.Error(t, zero.Validate())

	negative := PostingInput{
		CompanyID: 1,
		Type:      VoucherTypeJournal,
		Date:      date,
		Entries: []EntryInput{
			{AccountID: 1, Direction: Debit, Amount: d("-10")},
			{AccountID: 2, Direction: Credit, Amount: d("-10")},
		},
	}
	require.Error(t, negative.Validate())

	badDirection := PostingInput{
		CompanyID: 1,
		Type:      VoucherTypeJournal,
		Date:      date,
		Entries: []EntryInput{
			{AccountID: 1, Direction: "DEBIT", Amount: d("10")},
			{AccountID: 2, Direction: Credit, Amount: d("10")},
		},
	}
	require.Error(t, badDirection.Validate())
}

func TestDirectionOpposite(t *testing.T) {
	require.Equal(t, Credit, Debit.Opposite())
	require.Equal(t, Debit, Credit.Opposite())
}
