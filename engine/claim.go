package engine

import (
	"go.uber.org/zap"

	"quadfund/logger"
	"quadfund/repository"
)

// ClaimPayout converts a participant's frozen share into a one-time transfer
// from the pool escrow to the project escrow. The payout is the share of the
// pool's total funding truncated to base units, so the sum of all payouts
// never exceeds what the pool collected. The claimed flag and the transfer
// commit together; a duplicate claim observes claimed and is rejected before
// any second transfer is issued.
func (e *Engine) ClaimPayout(caller, poolID, projectID string) (uint64, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	project, err := e.repo.GetProject(projectID)
	if err != nil {
		return 0, err
	}
	pool, err := e.repo.GetPool(poolID)
	if err != nil {
		return 0, err
	}

	// Preconditions, in order, all fail-fast.
	if !project.HasAdmin(caller) {
		return 0, ErrNotAuthorized
	}
	if e.nowUnix() <= pool.End {
		return 0, ErrPoolStillActive
	}
	participant := pool.Participant(projectID)
	if participant == nil {
		return 0, ErrNotInPool
	}
	if participant.Claimed {
		return 0, ErrAlreadyClaimed
	}

	payout := uint64(participant.Share.Share * float64(pool.TotalFunding))

	batch := repository.NewBatch()
	escrow := pool.EscrowAccount()
	if err := e.cust.Transfer(batch, escrow, escrow, project.EscrowAccount(), payout); err != nil {
		return 0, err
	}

	participant.Claimed = true
	pool.Balance -= payout
	project.Raised += payout
	project.Balance += payout

	if err := batch.PutPool(pool); err != nil {
		return 0, err
	}
	if err := batch.PutProject(project); err != nil {
		return 0, err
	}
	if err := e.repo.Commit(batch); err != nil {
		return 0, err
	}

	logger.Logger.Info("Payout claimed",
		zap.String("pool_id", poolID), zap.String("project_id", projectID),
		zap.Float64("share", participant.Share.Share), zap.Uint64("payout", payout))
	return payout, nil
}
