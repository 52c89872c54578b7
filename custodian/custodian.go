package custodian

import (
	"errors"

	"quadfund/repository"
)

var (
	// ErrInsufficientFunds aborts a transfer that would overdraw escrow.
	ErrInsufficientFunds = errors.New("insufficient escrow balance")
	// ErrBadAuthority rejects a transfer not signed by the source account's
	// own authority.
	ErrBadAuthority = errors.New("authority does not own source account")
)

// Custodian atomically moves value between escrow balances. Transfers are
// staged into the calling operation's batch so the movement commits together
// with the record updates that justify it.
type Custodian interface {
	Transfer(batch *repository.Batch, authority, from, to string, amount uint64) error
	Deposit(batch *repository.Batch, account string, amount uint64) error
}

// LedgerCustodian keeps escrow balances as records in the same store as the
// ledger entities. An account's authority is the account identity itself:
// human callers own their contributor accounts, and a pool's escrow is owned
// by the pool's derived identity, held by the claim protocol rather than any
// caller.
type LedgerCustodian struct {
	repo repository.LedgerRepositoryInterface
}

func NewLedgerCustodian(repo repository.LedgerRepositoryInterface) *LedgerCustodian {
	return &LedgerCustodian{repo: repo}
}

func (c *LedgerCustodian) Transfer(batch *repository.Batch, authority, from, to string, amount uint64) error {
	if authority != from {
		return ErrBadAuthority
	}

	fromBal, err := c.repo.Balance(from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return ErrInsufficientFunds
	}
	toBal, err := c.repo.Balance(to)
	if err != nil {
		return err
	}

	if err := batch.SetBalance(from, fromBal-amount); err != nil {
		return err
	}
	return batch.SetBalance(to, toBal+amount)
}

// Deposit credits value entering the system from outside into an escrow
// account.
func (c *LedgerCustodian) Deposit(batch *repository.Batch, account string, amount uint64) error {
	bal, err := c.repo.Balance(account)
	if err != nil {
		return err
	}
	return batch.SetBalance(account, bal+amount)
}
