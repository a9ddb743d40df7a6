package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrLedgerUnavailable  = errors.New("ledger unavailable")
	ErrLedgerInconsistent = errors.New("ledger inconsistent")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrUserRejected       = errors.New("user rejected")
	ErrTicketUnavailable  = errors.New("ticket unavailable")

	// ErrInvalidTransaction means the attached transaction does not purchase
	// the requested ticket.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrTransactionNotFound means a reachable node does not know the
	// attached transaction.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// EIP-1193 code of a request rejected by the wallet.
var userRejectedCode = regexp.MustCompile(`\b4001\b`)

var knownErrors = []error{
	ErrLedgerUnavailable,
	ErrLedgerInconsistent,
	ErrInsufficientFunds,
	ErrUserRejected,
	ErrTicketUnavailable,
	ErrInvalidTransaction,
	ErrTransactionNotFound,
}

// Classify wraps a raw node error into one of the ledger errors. Anything
// unrecognized is treated as the ledger being unreachable.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return err
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	case strings.Contains(msg, "user rejected"),
		strings.Contains(msg, "user denied"),
		userRejectedCode.MatchString(msg):
		return fmt.Errorf("%w: %v", ErrUserRejected, err)
	case strings.Contains(msg, "execution reverted"):
		return fmt.Errorf("%w: %v", ErrTicketUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
}

// Kind returns a short label of err, used for metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrUserRejected):
		return "user_rejected"
	case errors.Is(err, ErrTicketUnavailable):
		return "ticket_unavailable"
	case errors.Is(err, ErrInvalidTransaction):
		return "invalid_transaction"
	case errors.Is(err, ErrTransactionNotFound):
		return "transaction_not_found"
	case errors.Is(err, ErrLedgerInconsistent):
		return "inconsistent"
	default:
		return "unavailable"
	}
}
