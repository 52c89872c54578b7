package engine

import (
	"sync"
	"time"

	"quadfund/custodian"
	"quadfund/models"
	"quadfund/oracle"
	"quadfund/repository"
)

// Config carries the program-wide settings that the original design baked in
// as constants: the supported denomination set, the quote staleness bound and
// the record field limits.
type Config struct {
	SupportedDenominations []string
	MaxQuoteAge            time.Duration
	MaxNameLength          int
	MaxAdmins              int
}

func (c *Config) applyDefaults() {
	if c.MaxQuoteAge == 0 {
		c.MaxQuoteAge = 60 * time.Second
	}
	if c.MaxNameLength == 0 {
		c.MaxNameLength = 50
	}
	if c.MaxAdmins == 0 {
		c.MaxAdmins = 5
	}
}

// Engine implements the allocation and payout ledger over a repository, a
// custodian and a price oracle. Each exposed operation stages all of its
// writes into one batch and commits it atomically; the mutex keeps this
// process a single effective writer, standing in for the per-record
// serialization of a replicated substrate.
type Engine struct {
	repo   repository.LedgerRepositoryInterface
	cust   custodian.Custodian
	oracle oracle.PriceOracle
	cfg    Config
	now    func() time.Time
	mux    sync.Mutex
}

func NewEngine(repo repository.LedgerRepositoryInterface, cust custodian.Custodian, po oracle.PriceOracle, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		repo:   repo,
		cust:   cust,
		oracle: po,
		cfg:    cfg,
		now:    time.Now,
	}
}

// SetClock replaces the wall clock, used by tests to drive the time-gated
// state machines.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) nowUnix() int64 {
	return e.now().Unix()
}

func (e *Engine) checkName(name string) error {
	if len(name) > e.cfg.MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func (e *Engine) checkAdmins(admins []string) error {
	if len(admins) > e.cfg.MaxAdmins {
		return ErrTooManyAdmins
	}
	return nil
}

func (e *Engine) denominationSupported(denom string) error {
	for _, d := range e.cfg.SupportedDenominations {
		if d == denom {
			return nil
		}
	}
	return ErrDenominationNotSupported
}

// GetPool reads a pool record.
func (e *Engine) GetPool(id string) (*models.Pool, error) {
	return e.repo.GetPool(id)
}

// ListPools reads every pool record.
func (e *Engine) ListPools() ([]*models.Pool, error) {
	return e.repo.GetAllPools()
}

// ListProjects reads every project record.
func (e *Engine) ListProjects() ([]*models.Project, error) {
	return e.repo.GetAllProjects()
}

// GetProject reads a project record.
func (e *Engine) GetProject(id string) (*models.Project, error) {
	return e.repo.GetProject(id)
}

// GetMilestone reads a milestone record.
func (e *Engine) GetMilestone(projectID, id string) (*models.Milestone, error) {
	return e.repo.GetMilestone(projectID, id)
}

// Balance reads an escrow account balance.
func (e *Engine) Balance(account string) (uint64, error) {
	return e.repo.Balance(account)
}

// Deposit credits external value into an escrow account, so contributors and
// sources can hold balances the custodian may move.
func (e *Engine) Deposit(account string, amount uint64) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	batch := repository.NewBatch()
	if err := e.cust.Deposit(batch, account, amount); err != nil {
		return err
	}
	return e.repo.Commit(batch)
}
