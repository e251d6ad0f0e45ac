// Package payments holds the bookkeeping rules for money received against a
// task. Nothing here touches storage: callers load a task, apply a change and
// persist the result.
//
// All arithmetic runs on decimals rounded to paise (two places) so that
// amountCollected + unpaidAmount always equals finalCharges exactly once stored.
package payments

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shopops/portal/internal/models"
)

// Tolerance is the largest drift accepted between the stored monetary fields.
const Tolerance = 0.005

var (
	ErrNonPositiveAmount     = errors.New("payment amount must be greater than zero")
	ErrNegativeAmount        = errors.New("initial payment amount cannot be negative")
	ErrInvalidAmount         = errors.New("amount must be a number with at most two decimal places")
	ErrInvalidPaymentMode    = errors.New("payment mode must be one of cash, shop_qr, personal_qr, other")
	ErrNegativeCharges       = errors.New("charges cannot be negative")
	ErrChargesBelowCollected = errors.New("final charges cannot be lower than the amount already collected")
	ErrUnbalanced            = errors.New("collected and unpaid amounts do not add up to final charges")
)

// ExceedsUnpaidError rejects a payment larger than the outstanding balance.
type ExceedsUnpaidError struct {
	Amount decimal.Decimal
	Unpaid decimal.Decimal
}

func (e *ExceedsUnpaidError) Error() string {
	return fmt.Sprintf("payment of %s exceeds unpaid balance of %s", e.Amount.String(), e.Unpaid.String())
}

// Request describes money received for a task.
type Request struct {
	Amount     float64
	Mode       models.PaymentMode
	Remarks    string
	ReceivedBy *primitive.ObjectID
	RequestID  string
}

func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// parseAmount reads a submitted amount. Fractions of a paisa are rejected
// rather than rounded so the balance checks see the value the caller sent.
func parseAmount(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrInvalidAmount
	}
	d := decimal.NewFromFloat(f)
	if !d.Equal(d.Round(2)) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Apply records a top-up payment on task. On error the task is not modified.
func Apply(task *models.Task, req Request, now time.Time) (models.PaymentHistoryEntry, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return models.PaymentHistoryEntry{}, err
	}
	if !amount.IsPositive() {
		return models.PaymentHistoryEntry{}, ErrNonPositiveAmount
	}
	if !req.Mode.Valid() {
		return models.PaymentHistoryEntry{}, ErrInvalidPaymentMode
	}

	unpaid := money(task.UnpaidAmount)
	if amount.GreaterThan(unpaid) {
		return models.PaymentHistoryEntry{}, &ExceedsUnpaidError{Amount: amount, Unpaid: unpaid}
	}

	remaining := unpaid.Sub(amount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	collected := money(task.AmountCollected).Add(amount)

	entry := models.PaymentHistoryEntry{
		Amount:           amount.InexactFloat64(),
		Mode:             req.Mode,
		Remarks:          req.Remarks,
		PaidAt:           now,
		IsInitialPayment: false,
		ReceivedBy:       req.ReceivedBy,
		RequestID:        req.RequestID,
	}

	task.AmountCollected = collected.InexactFloat64()
	task.UnpaidAmount = remaining.InexactFloat64()
	task.PaymentMode = req.Mode
	task.PaymentRemarks = req.Remarks
	task.PaymentHistory = append(task.PaymentHistory, entry)
	return entry, nil
}

// Initial sets the monetary state of a task that is being created from its
// FinalCharges and an optional payment taken at the counter.
func Initial(task *models.Task, initial *Request, now time.Time) error {
	final, err := parseAmount(task.FinalCharges)
	if err != nil {
		return err
	}
	if final.IsNegative() {
		return ErrNegativeCharges
	}
	service, err := parseAmount(task.ServiceCharge)
	if err != nil {
		return err
	}
	if service.IsNegative() {
		return ErrNegativeCharges
	}

	collected := decimal.Zero
	var history []models.PaymentHistoryEntry
	mode := models.PaymentMode("")
	remarks := ""

	if initial != nil {
		amount, err := parseAmount(initial.Amount)
		if err != nil {
			return err
		}
		if amount.IsNegative() {
			return ErrNegativeAmount
		}
		if amount.GreaterThan(final) {
			return &ExceedsUnpaidError{Amount: amount, Unpaid: final}
		}
		if amount.IsPositive() {
			if !initial.Mode.Valid() {
				return ErrInvalidPaymentMode
			}
			collected = amount
			mode = initial.Mode
			remarks = initial.Remarks
			history = append(history, models.PaymentHistoryEntry{
				Amount:           amount.InexactFloat64(),
				Mode:             initial.Mode,
				Remarks:          initial.Remarks,
				PaidAt:           now,
				IsInitialPayment: true,
				ReceivedBy:       initial.ReceivedBy,
				RequestID:        initial.RequestID,
			})
		}
	}

	if history == nil {
		history = []models.PaymentHistoryEntry{}
	}
	task.ServiceCharge = service.InexactFloat64()
	task.FinalCharges = final.InexactFloat64()
	task.AmountCollected = collected.InexactFloat64()
	task.UnpaidAmount = final.Sub(collected).InexactFloat64()
	task.PaymentMode = mode
	task.PaymentRemarks = remarks
	task.PaymentHistory = history
	return nil
}

// Recharge changes the billed amount of a task and recomputes what is still owed.
func Recharge(task *models.Task, finalCharges float64) error {
	final, err := parseAmount(finalCharges)
	if err != nil {
		return err
	}
	if final.IsNegative() {
		return ErrNegativeCharges
	}
	collected := money(task.AmountCollected)
	if final.LessThan(collected) {
		return ErrChargesBelowCollected
	}
	task.FinalCharges = final.InexactFloat64()
	task.UnpaidAmount = final.Sub(collected).InexactFloat64()
	return nil
}

// CheckBalance verifies amountCollected + unpaidAmount == finalCharges.
func CheckBalance(task *models.Task) error {
	if task.UnpaidAmount < 0 {
		return ErrUnbalanced
	}
	if math.Abs(task.AmountCollected+task.UnpaidAmount-task.FinalCharges) > Tolerance {
		return ErrUnbalanced
	}
	return nil
}

// HasRequest reports whether a payment with the given idempotency key was
// already recorded on the task.
func HasRequest(task *models.Task, requestID string) bool {
	if requestID == "" {
		return false
	}
	for _, entry := range task.PaymentHistory {
		if entry.RequestID == requestID {
			return true
		}
	}
	return false
}
