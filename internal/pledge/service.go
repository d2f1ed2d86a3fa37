package pledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pawnbook/pawnbook/internal/fiscal"
	"github.com/pawnbook/pawnbook/internal/ledger"
	"github.com/pawnbook/pawnbook/internal/shared"
)

// ReadPort abstracts the read-side pledge queries.
type ReadPort interface {
	GetPledge(ctx context.Context, companyID, pledgeID int64) (Pledge, error)
	PaymentTotals(ctx context.Context, pledgeID int64) (PaymentTotals, error)
	ListPayments(ctx context.Context, companyID, pledgeID int64) ([]Payment, error)
}

// AuditPort records pledge events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheBumper invalidates cached reports after a posting.
type CacheBumper interface {
	Bump(ctx context.Context, companyID int64)
}

// IdempotencyPort reserves receipt numbers before posting. A retried
// request with a receipt already reserved is rejected up front; the
// payments table unique index stays as the last line of defence.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates disbursal, payments, and settlement quoting. Every
// mutation locks the pledge row so concurrent payments against the same
// pledge serialize and never observe a stale balance.
type Service struct {
	repo  RepositoryPort
	read  ReadPort
	audit AuditPort
	cache CacheBumper
	idem  IdempotencyPort
	now   func() time.Time
}

// NewService constructs the pledge service.
func NewService(repo RepositoryPort, read ReadPort, audit AuditPort, cache CacheBumper, idem IdempotencyPort) *Service {
	return &Service{repo: repo, read: read, audit: audit, cache: cache, idem: idem, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Disburse opens a pledge and posts its disbursal voucher in one
// transaction. The first-month interest and document charges are withheld
// from the cash paid out; FinalAmount is derived here, at write time.
func (s *Service) Disburse(ctx context.Context, in DisburseInput) (Pledge, error) {
	if err := in.Validate(); err != nil {
		return Pledge{}, err
	}
	var pledge Pledge
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rate, durationMonths, err := tx.GetSchemeTerms(ctx, in.CompanyID, in.SchemeID)
		if err != nil {
			return err
		}
		firstMonth := MonthlyInterest(in.Principal, rate)
		cashOut := in.Principal.Sub(firstMonth).Sub(in.DocumentCharges)
		if !cashOut.IsPositive() {
			return ErrDisbursalExceedsPrincipal
		}

		pledge, err = tx.InsertPledge(ctx, Pledge{
			CompanyID:          in.CompanyID,
			CustomerID:         in.CustomerID,
			SchemeID:           in.SchemeID,
			PledgeNo:           in.PledgeNo,
			Principal:          in.Principal,
			MonthlyRatePct:     rate,
			DurationMonths:     durationMonths,
			FirstMonthInterest: firstMonth,
			DocumentCharges:    in.DocumentCharges,
			FinalAmount:        in.Principal.Add(firstMonth).Add(in.DocumentCharges),
			Status:             StatusActive,
			PledgeDate:         in.PledgeDate,
			DueDate:            in.PledgeDate.AddDate(0, durationMonths, 0),
			CreatedBy:          in.ActorID,
		})
		if err != nil {
			return err
		}

		lg := tx.Ledger()
		accounts, err := chartAccounts(ctx, lg, in.CompanyID,
			ledger.CodeCash, ledger.CodePledgeLoans, ledger.CodeInterestIncome, ledger.CodeDocumentCharges)
		if err != nil {
			return err
		}
		ref := &ledger.Reference{Kind: ledger.RefPledge, ID: pledge.ID}
		entries := []ledger.EntryInput{
			{AccountID: accounts[ledger.CodePledgeLoans], Direction: ledger.Debit, Amount: in.Principal, Ref: ref},
			{AccountID: accounts[ledger.CodeCash], Direction: ledger.Credit, Amount: cashOut, Ref: ref},
			{AccountID: accounts[ledger.CodeInterestIncome], Direction: ledger.Credit, Amount: firstMonth, Narration: "first month interest", Ref: ref},
		}
		if in.DocumentCharges.IsPositive() {
			entries = append(entries, ledger.EntryInput{
				AccountID: accounts[ledger.CodeDocumentCharges], Direction: ledger.Credit,
				Amount: in.DocumentCharges, Narration: "document charges", Ref: ref,
			})
		}
		_, err = ledger.PostWithTx(ctx, lg, ledger.PostingInput{
			CompanyID: in.CompanyID,
			Type:      ledger.VoucherTypeDisbursal,
			Date:      in.PledgeDate,
			Narration: narrationOr(in.Narration, fmt.Sprintf("disbursal of pledge %s", in.PledgeNo)),
			ActorID:   in.ActorID,
			Entries:   entries,
		})
		return err
	})
	if err != nil {
		return Pledge{}, err
	}
	s.afterWrite(ctx, in.CompanyID, in.ActorID, "pledge.disburse", pledge.ID)
	return pledge, nil
}

// RecordPayment validates the split, reserves the receipt number, posts
// the payment voucher, and recomputes the pledge status, all under the
// pledge row lock. A failed posting releases the reservation so the
// corrected request can reuse the receipt.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (Payment, error) {
	if err := in.Validate(); err != nil {
		return Payment{}, err
	}
	if err := s.reserveReceipt(ctx, in.CompanyID, in.ReceiptNo); err != nil {
		return Payment{}, err
	}
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pledge, err := tx.GetPledgeForUpdate(ctx, in.CompanyID, in.PledgeID)
		if err != nil {
			return err
		}
		if err := s.ensureYearOpen(ctx, tx, in.CompanyID, in.Date); err != nil {
			return err
		}

		payment, err = tx.InsertPayment(ctx, Payment{
			PledgeID:  pledge.ID,
			CompanyID: in.CompanyID,
			Date:      in.Date,
			Amount:    in.Amount,
			Interest:  in.Interest,
			Principal: in.Principal,
			Penalty:   in.Penalty,
			Discount:  in.Discount,
			Method:    in.Method,
			ReceiptNo: in.ReceiptNo,
			Note:      in.Note,
			CreatedBy: in.ActorID,
		})
		if err != nil {
			return err
		}
		voucher, err := s.postPaymentVoucher(ctx, tx, pledge, in, payment.ID)
		if err != nil {
			return err
		}
		payment.VoucherID = voucher.ID
		return s.settleStatus(ctx, tx, pledge, &payment)
	})
	if err != nil {
		s.releaseReceipt(ctx, in.CompanyID, in.ReceiptNo)
		return Payment{}, err
	}
	s.afterWrite(ctx, in.CompanyID, in.ActorID, "payment.record", payment.ID)
	return payment, nil
}

// UpdatePayment reverses the original voucher, re-posts with the revised
// amounts, updates the payment row, and recomputes the status. The ledger
// ends up exactly as if the payment had been entered correctly first. The
// input's pledge must be the one the payment belongs to; a payment never
// moves between pledges.
func (s *Service) UpdatePayment(ctx context.Context, paymentID int64, in PaymentInput) (Payment, error) {
	if err := in.Validate(); err != nil {
		return Payment{}, err
	}
	var (
		payment    Payment
		oldReceipt string
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetPayment(ctx, in.CompanyID, paymentID)
		if err != nil {
			return err
		}
		if in.PledgeID != existing.PledgeID {
			return ErrPaymentNotFound
		}
		oldReceipt = existing.ReceiptNo
		pledge, err := tx.GetPledgeForUpdate(ctx, in.CompanyID, existing.PledgeID)
		if err != nil {
			return err
		}
		if err := s.ensureYearOpen(ctx, tx, in.CompanyID, existing.Date); err != nil {
			return err
		}
		if err := s.ensureYearOpen(ctx, tx, in.CompanyID, in.Date); err != nil {
			return err
		}

		if _, err := ledger.ReverseWithTx(ctx, tx.Ledger(), in.CompanyID, existing.VoucherID, in.ActorID,
			fmt.Sprintf("revise payment %s", existing.ReceiptNo), s.now()); err != nil {
			return err
		}
		voucher, err := s.postPaymentVoucher(ctx, tx, pledge, in, existing.ID)
		if err != nil {
			return err
		}

		payment = existing
		payment.VoucherID = voucher.ID
		payment.Date = in.Date
		payment.Amount = in.Amount
		payment.Interest = in.Interest
		payment.Principal = in.Principal
		payment.Penalty = in.Penalty
		payment.Discount = in.Discount
		payment.Method = in.Method
		payment.ReceiptNo = in.ReceiptNo
		payment.Note = in.Note
		if err := tx.UpdatePaymentRow(ctx, payment); err != nil {
			return err
		}
		return s.settleStatus(ctx, tx, pledge, &payment)
	})
	if err != nil {
		return Payment{}, err
	}
	if oldReceipt != in.ReceiptNo {
		s.releaseReceipt(ctx, in.CompanyID, oldReceipt)
		s.claimReceipt(ctx, in.CompanyID, in.ReceiptNo)
	}
	s.afterWrite(ctx, in.CompanyID, in.ActorID, "payment.update", paymentID)
	return payment, nil
}

// DeletePayment reverses the payment's voucher, removes the payment row,
// and recomputes the status. The original entries stay in the ledger.
func (s *Service) DeletePayment(ctx context.Context, companyID, paymentID, actorID int64) error {
	var receiptNo string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetPayment(ctx, companyID, paymentID)
		if err != nil {
			return err
		}
		receiptNo = existing.ReceiptNo
		pledge, err := tx.GetPledgeForUpdate(ctx, companyID, existing.PledgeID)
		if err != nil {
			return err
		}
		if err := s.ensureYearOpen(ctx, tx, companyID, existing.Date); err != nil {
			return err
		}
		if _, err := ledger.ReverseWithTx(ctx, tx.Ledger(), companyID, existing.VoucherID, actorID,
			fmt.Sprintf("delete payment %s", existing.ReceiptNo), s.now()); err != nil {
			return err
		}
		if err := tx.DeletePaymentRow(ctx, existing.ID); err != nil {
			return err
		}
		return s.settleStatus(ctx, tx, pledge, nil)
	})
	if err != nil {
		return err
	}
	s.releaseReceipt(ctx, companyID, receiptNo)
	s.afterWrite(ctx, companyID, actorID, "payment.delete", paymentID)
	return nil
}

// SettlementQuote computes the settlement position without locking.
func (s *Service) SettlementQuote(ctx context.Context, companyID, pledgeID int64, asOf time.Time) (Quote, error) {
	pledge, err := s.read.GetPledge(ctx, companyID, pledgeID)
	if err != nil {
		return Quote{}, err
	}
	totals, err := s.read.PaymentTotals(ctx, pledgeID)
	if err != nil {
		return Quote{}, err
	}
	return BuildQuote(pledge, totals, asOf), nil
}

// GetPledge loads one pledge with its recorded payments.
func (s *Service) GetPledge(ctx context.Context, companyID, pledgeID int64) (Pledge, []Payment, error) {
	pledge, err := s.read.GetPledge(ctx, companyID, pledgeID)
	if err != nil {
		return Pledge{}, nil, err
	}
	payments, err := s.read.ListPayments(ctx, companyID, pledgeID)
	if err != nil {
		return Pledge{}, nil, err
	}
	return pledge, payments, nil
}

// postPaymentVoucher posts the two-entry payment voucher: cash debit for
// the amount received, customer sub-account credit for the same amount.
// The sub-account is allocated on the customer's first payment.
func (s *Service) postPaymentVoucher(ctx context.Context, tx TxRepository, pledge Pledge, in PaymentInput, paymentID int64) (ledger.Voucher, error) {
	lg := tx.Ledger()
	customerName, err := tx.GetCustomerName(ctx, pledge.CompanyID, pledge.CustomerID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	sub, err := ledger.EnsureCustomerSubAccount(ctx, lg, pledge.CompanyID, pledge.CustomerID, customerName)
	if err != nil {
		return ledger.Voucher{}, err
	}
	cash, err := lg.GetAccountByCode(ctx, pledge.CompanyID, ledger.CodeCash)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return ledger.Voucher{}, ledger.ErrMissingParentAccount
		}
		return ledger.Voucher{}, err
	}
	ref := &ledger.Reference{Kind: ledger.RefPayment, ID: paymentID}
	return ledger.PostWithTx(ctx, lg, ledger.PostingInput{
		CompanyID: pledge.CompanyID,
		Type:      ledger.VoucherTypePayment,
		Date:      in.Date,
		Narration: narrationOr(in.Note, fmt.Sprintf("payment %s against pledge %s", in.ReceiptNo, pledge.PledgeNo)),
		ActorID:   in.ActorID,
		Entries: []ledger.EntryInput{
			{AccountID: cash.ID, Direction: ledger.Debit, Amount: in.Amount, Ref: ref},
			{AccountID: sub.ID, Direction: ledger.Credit, Amount: in.Amount, Ref: ref},
		},
	})
}

// settleStatus recomputes and stores the pledge status and, when a payment
// row is in hand, refreshes its stored balance snapshot.
func (s *Service) settleStatus(ctx context.Context, tx TxRepository, pledge Pledge, payment *Payment) error {
	totals, err := tx.SumPayments(ctx, pledge.ID)
	if err != nil {
		return err
	}
	quote := BuildQuote(pledge, totals, s.now())
	if err := tx.UpdatePledgeStatus(ctx, pledge.ID, StatusFor(pledge, totals, s.now())); err != nil {
		return err
	}
	if payment != nil {
		payment.BalanceAmount = quote.FinalAmount
		return tx.UpdatePaymentRow(ctx, *payment)
	}
	return nil
}

// ensureYearOpen rejects mutations dated inside an already-closed
// financial year. The fiscal-start read takes a shared lock on the company
// row, serializing payment posting against a concurrent year close.
func (s *Service) ensureYearOpen(ctx context.Context, tx TxRepository, companyID int64, date time.Time) error {
	month, day, err := tx.GetCompanyFiscalStart(ctx, companyID)
	if err != nil {
		return err
	}
	year := fiscal.YearContaining(date, month, day)
	closed, err := tx.Ledger().YearClosed(ctx, companyID, year.Start, year.End)
	if err != nil {
		return err
	}
	if closed {
		return ErrPaymentLocked
	}
	return nil
}

func (s *Service) afterWrite(ctx context.Context, companyID, actorID int64, action string, entityID int64) {
	if s.cache != nil {
		s.cache.Bump(ctx, companyID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "pledge",
			EntityID: fmt.Sprintf("%d", entityID),
			At:       s.now(),
		})
	}
}

const receiptModule = "pledge.payment"

func receiptKey(companyID int64, receiptNo string) string {
	return fmt.Sprintf("payment:%d:%s", companyID, receiptNo)
}

// reserveReceipt claims the receipt number before any posting work. A
// conflict means the receipt was already processed and maps to the same
// error the payments unique index would raise.
func (s *Service) reserveReceipt(ctx context.Context, companyID int64, receiptNo string) error {
	if s.idem == nil {
		return nil
	}
	if err := s.idem.CheckAndInsert(ctx, receiptKey(companyID, receiptNo), receiptModule); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return ErrDuplicateReceipt
		}
		return err
	}
	return nil
}

// claimReceipt records a receipt number taken over by an update. Best
// effort: the unique index still guards the table.
func (s *Service) claimReceipt(ctx context.Context, companyID int64, receiptNo string) {
	if s.idem == nil {
		return
	}
	_ = s.idem.CheckAndInsert(ctx, receiptKey(companyID, receiptNo), receiptModule)
}

func (s *Service) releaseReceipt(ctx context.Context, companyID int64, receiptNo string) {
	if s.idem == nil {
		return
	}
	_ = s.idem.Delete(ctx, receiptKey(companyID, receiptNo))
}

func narrationOr(given, fallback string) string {
	if given != "" {
		return given
	}
	return fallback
}

// chartAccounts resolves fixed chart codes to account ids, mapping a
// missing code to the chart-not-initialised error.
func chartAccounts(ctx context.Context, lg ledger.TxRepository, companyID int64, codes ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(codes))
	for _, code := range codes {
		account, err := lg.GetAccountByCode(ctx, companyID, code)
		if err != nil {
			if errors.Is(err, ledger.ErrAccountNotFound) {
				return nil, ledger.ErrMissingParentAccount
			}
			return nil, err
		}
		out[code] = account.ID
	}
	return out, nil
}
