package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PostWithTx validates and persists a voucher with its entries inside the
// caller's transaction. It is the single write path for every posting in
// the system: payments, disbursals, reversals, and fiscal year boundaries
// all funnel through here. It never computes settlement amounts or touches
// pledge state; that is the caller's job inside the same transaction.
func PostWithTx(ctx context.Context, tx TxRepository, in PostingInput) (Voucher, error) {
	if err := in.Validate(); err != nil {
		return Voucher{}, err
	}
	for idx, line := range in.Entries {
		account, err := tx.GetAccount(ctx, in.CompanyID, line.AccountID)
		if err != nil {
			return Voucher{}, fmt.Errorf("entry %d: %w", idx, err)
		}
		if !account.IsActive {
			return Voucher{}, fmt.Errorf("entry %d: account %s is deactivated: %w", idx, account.Code, ErrAccountNotFound)
		}
	}
	voucher, err := tx.InsertVoucher(ctx, in)
	if err != nil {
		return Voucher{}, err
	}
	entries, err := tx.InsertEntries(ctx, voucher, in.Entries)
	if err != nil {
		return Voucher{}, err
	}
	voucher.Entries = entries
	return voucher, nil
}

// ReverseWithTx synthesizes the mirror-image voucher of an existing one:
// same magnitudes, debit and credit swapped, posted as a journal voucher on
// the supplied date. The original entries are never edited or deleted; the
// ledger stays append-only.
func ReverseWithTx(ctx context.Context, tx TxRepository, companyID, voucherID, actorID int64, reason string, date time.Time) (Voucher, error) {
	original, err := tx.GetVoucherWithEntries(ctx, companyID, voucherID)
	if err != nil {
		return Voucher{}, err
	}
	if len(original.Entries) == 0 {
		return Voucher{}, ErrNothingToReverse
	}

	lines := make([]EntryInput, 0, len(original.Entries))
	var origTotal, mirrorTotal decimal.Decimal
	for _, entry := range original.Entries {
		ref := entry.Ref
		if ref == nil {
			ref = &Reference{Kind: RefReversal, ID: original.ID}
		}
		lines = append(lines, EntryInput{
			AccountID: entry.AccountID,
			Direction: entry.Direction.Opposite(),
			Amount:    entry.Amount,
			Narration: entry.Narration,
			Ref:       ref,
		})
		origTotal = origTotal.Add(entry.Amount)
		mirrorTotal = mirrorTotal.Add(lines[len(lines)-1].Amount)
	}
	if !origTotal.Equal(mirrorTotal) {
		return Voucher{}, ErrReversalMismatch
	}

	narration := reason
	if narration == "" {
		narration = fmt.Sprintf("Reversal of voucher %d", original.ID)
	}
	return PostWithTx(ctx, tx, PostingInput{
		CompanyID: companyID,
		Type:      VoucherTypeJournal,
		Date:      date,
		Narration: narration,
		ActorID:   actorID,
		Entries:   lines,
	})
}
