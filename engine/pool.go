package engine

import (
	"go.uber.org/zap"

	"quadfund/logger"
	"quadfund/models"
	"quadfund/repository"
)

// poolIsActive gates contribution and vote operations. The recorded status is
// advanced lazily from the caller-observed clock before it is inspected.
func poolIsActive(p *models.Pool, now int64) error {
	if now > p.End {
		return ErrEndDatePassed
	}
	if now >= p.Start && p.Status == models.PoolPendingStart {
		p.Status = models.PoolActive
	}
	switch p.Status {
	case models.PoolPendingStart:
		return ErrPoolNotStarted
	case models.PoolActive:
		return nil
	case models.PoolDistributed:
		return ErrReleasedFunds
	default:
		return ErrPoolClosed
	}
}

// poolCanFund is like poolIsActive but also permits PendingStart: pools may
// collect funding and enrollments before the round begins.
func poolCanFund(p *models.Pool, now int64) error {
	if now > p.End {
		return ErrEndDatePassed
	}
	if now >= p.Start && p.Status == models.PoolPendingStart {
		p.Status = models.PoolActive
	}
	switch p.Status {
	case models.PoolPendingStart, models.PoolActive:
		return nil
	case models.PoolDistributed:
		return ErrReleasedFunds
	default:
		return ErrPoolClosed
	}
}

// poolCanWithdraw permits an admin to reclaim un-awarded capital: only after
// the round has ended, and only when no participant holds a share of it.
func poolCanWithdraw(p *models.Pool, now int64) error {
	if now >= p.Start && p.Status == models.PoolPendingStart {
		p.Status = models.PoolActive
	}
	switch p.Status {
	case models.PoolDistributed:
		return ErrReleasedFunds
	case models.PoolClosed:
		return ErrPoolClosed
	}
	if now > p.End && (len(p.Participants) == 0 || p.ShareSum() == 0) {
		return nil
	}
	return ErrPoolStillActive
}

// CreatePool registers a new funding round. The start must not have passed.
func (e *Engine) CreatePool(id, name string, start, end int64, admins []string, access models.PoolAccess) (*models.Pool, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	if err := e.checkName(name); err != nil {
		return nil, err
	}
	if err := e.checkAdmins(admins); err != nil {
		return nil, err
	}
	if e.nowUnix() > start {
		return nil, ErrPoolInvalidStart
	}
	if _, err := e.repo.GetPool(id); err == nil {
		return nil, ErrAlreadyExists
	}

	pool := &models.Pool{
		ID:     id,
		Name:   name,
		Start:  start,
		End:    end,
		Admins: admins,
		Status: models.PoolPendingStart,
		Access: access,
	}

	batch := repository.NewBatch()
	if err := batch.PutPool(pool); err != nil {
		return nil, err
	}
	if err := e.repo.Commit(batch); err != nil {
		return nil, err
	}

	logger.Logger.Info("Pool created",
		zap.String("pool_id", id), zap.Int64("start", start), zap.Int64("end", end))
	return pool, nil
}

// CreateSource registers an external funding source.
func (e *Engine) CreateSource(id, name, authority string) (*models.FundingSource, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	if err := e.checkName(name); err != nil {
		return nil, err
	}
	if _, err := e.repo.GetSource(id); err == nil {
		return nil, ErrAlreadyExists
	}

	source := &models.FundingSource{ID: id, Name: name, Authority: authority}
	batch := repository.NewBatch()
	if err := batch.PutSource(source); err != nil {
		return nil, err
	}
	if err := e.repo.Commit(batch); err != nil {
		return nil, err
	}
	return source, nil
}

// JoinPool self-enrolls a project into an open pool. The caller must be an
// admin of the project.
func (e *Engine) JoinPool(caller, projectID, poolID string) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	project, err := e.repo.GetProject(projectID)
	if err != nil {
		return err
	}
	if !project.HasAdmin(caller) {
		return ErrNotAuthorized
	}

	pool, err := e.repo.GetPool(poolID)
	if err != nil {
		return err
	}
	if err := poolCanFund(pool, e.nowUnix()); err != nil {
		return err
	}
	// Re-checked inside the committing operation so racing enrollments
	// cannot both land.
	if pool.Participant(projectID) != nil {
		return ErrAlreadyEntered
	}
	if pool.Access != models.AccessOpen {
		// Manual pools are not self-service.
		return ErrPoolClosed
	}

	pool.Participants = append(pool.Participants, models.Participant{ProjectID: projectID})

	batch := repository.NewBatch()
	if err := batch.PutPool(pool); err != nil {
		return err
	}
	if err := e.repo.Commit(batch); err != nil {
		return err
	}

	logger.Logger.Info("Project joined pool",
		zap.String("pool_id", poolID), zap.String("project_id", projectID))
	return nil
}

// AddProject enrolls a project into a manual pool. The caller must be an
// admin of the pool; open pools reject this since projects join themselves.
func (e *Engine) AddProject(caller, projectID, poolID string) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	if _, err := e.repo.GetProject(projectID); err != nil {
		return err
	}

	pool, err := e.repo.GetPool(poolID)
	if err != nil {
		return err
	}
	if !pool.HasAdmin(caller) {
		return ErrNotAuthorized
	}
	if err := poolCanFund(pool, e.nowUnix()); err != nil {
		return err
	}
	if pool.Participant(projectID) != nil {
		return ErrAlreadyEntered
	}
	if pool.Access != models.AccessManual {
		return ErrMismatchedConfig
	}

	pool.Participants = append(pool.Participants, models.Participant{ProjectID: projectID})

	batch := repository.NewBatch()
	if err := batch.PutPool(pool); err != nil {
		return err
	}
	if err := e.repo.Commit(batch); err != nil {
		return err
	}

	logger.Logger.Info("Project added to pool",
		zap.String("pool_id", poolID), zap.String("project_id", projectID))
	return nil
}

// FundPool moves capital from a registered source into the pool escrow and
// records the funding ticket. Pools accept funding before the round starts.
func (e *Engine) FundPool(caller, poolID, sourceID string, amount uint64, denomination string) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	if err := e.denominationSupported(denomination); err != nil {
		return err
	}

	source, err := e.repo.GetSource(sourceID)
	if err != nil {
		return err
	}
	if source.Authority != caller {
		return ErrNotAuthorized
	}

	pool, err := e.repo.GetPool(poolID)
	if err != nil {
		return err
	}
	if err := poolCanFund(pool, e.nowUnix()); err != nil {
		return err
	}

	pool.Funders = append(pool.Funders, models.FundingTicket{
		SourceID:     sourceID,
		Denomination: denomination,
		Amount:       amount,
	})
	pool.TotalFunding += amount
	pool.Balance += amount

	batch := repository.NewBatch()
	escrow := source.EscrowAccount()
	if err := e.cust.Transfer(batch, escrow, escrow, pool.EscrowAccount(), amount); err != nil {
		return err
	}
	if err := batch.PutPool(pool); err != nil {
		return err
	}
	if err := e.repo.Commit(batch); err != nil {
		return err
	}

	logger.Logger.Info("Pool funded",
		zap.String("pool_id", poolID), zap.String("source_id", sourceID),
		zap.Uint64("amount", amount), zap.String("denomination", denomination))
	return nil
}

// UpdatePool dispatches an admin-gated field update.
func (e *Engine) UpdatePool(caller, poolID string, update models.PoolUpdate) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	pool, err := e.repo.GetPool(poolID)
	if err != nil {
		return err
	}
	if !pool.HasAdmin(caller) {
		return ErrNotAuthorized
	}

	switch update.Kind {
	case models.PoolUpdateName:
		if err := e.checkName(update.Name); err != nil {
			return err
		}
		pool.Name = update.Name
	case models.PoolUpdateAddAdmin:
		if !pool.HasAdmin(update.Admin) {
			if len(pool.Admins) >= e.cfg.MaxAdmins {
				return ErrTooManyAdmins
			}
			pool.Admins = append(pool.Admins, update.Admin)
		}
	case models.PoolUpdateRemoveAdmin:
		admins := pool.Admins[:0]
		for _, a := range pool.Admins {
			if a != update.Admin {
				admins = append(admins, a)
			}
		}
		pool.Admins = admins
	case models.PoolUpdateAccess:
		pool.Access = update.Access
	case models.PoolUpdateStatus:
		pool.Status = update.Status
	default:
		return ErrUnknownUpdateField
	}

	batch := repository.NewBatch()
	if err := batch.PutPool(pool); err != nil {
		return err
	}
	return e.repo.Commit(batch)
}

// ExtendPoolDuration pushes the end date forward. End dates only ever grow.
func (e *Engine) ExtendPoolDuration(caller, poolID string, newEnd int64) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	pool, err := e.repo.GetPool(poolID)
	if err != nil {
		return err
	}
	if !pool.HasAdmin(caller) {
		return ErrNotAuthorized
	}
	if newEnd <= pool.End {
		return ErrExtendDateInvalid
	}
	pool.End = newEnd

	batch := repository.NewBatch()
	if err := batch.PutPool(pool); err != nil {
		return err
	}
	if err := e.repo.Commit(batch); err != nil {
		return err
	}

	logger.Logger.Info("Pool duration extended",
		zap.String("pool_id", poolID), zap.Int64("new_end", newEnd))
	return nil
}

// WithdrawFundsFromRound reclaims un-awarded pool capital to the calling
// admin, signed by the pool's own authority.
func (e *Engine) WithdrawFundsFromRound(caller, poolID string) (uint64, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	pool, err := e.repo.GetPool(poolID)
	if err != nil {
		return 0, err
	}
	if !pool.HasAdmin(caller) {
		return 0, ErrNotAuthorized
	}
	if err := poolCanWithdraw(pool, e.nowUnix()); err != nil {
		return 0, err
	}

	amount := pool.Balance
	pool.Balance = 0

	batch := repository.NewBatch()
	escrow := pool.EscrowAccount()
	if err := e.cust.Transfer(batch, escrow, escrow, caller, amount); err != nil {
		return 0, err
	}
	if err := batch.PutPool(pool); err != nil {
		return 0, err
	}
	if err := e.repo.Commit(batch); err != nil {
		return 0, err
	}

	logger.Logger.Info("Round funds withdrawn",
		zap.String("pool_id", poolID), zap.Uint64("amount", amount))
	return amount, nil
}
