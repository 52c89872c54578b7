package engine

import (
	"errors"
	"math"

	"go.uber.org/zap"

	"quadfund/logger"
	"quadfund/models"
	"quadfund/oracle"
	"quadfund/repository"
)

// Contribute moves a plain contribution into a project's escrow and bumps its
// counters. No pool is involved and no vote is recorded.
func (e *Engine) Contribute(caller, projectID string, amount uint64, denomination string) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	if err := e.denominationSupported(denomination); err != nil {
		return err
	}

	project, err := e.repo.GetProject(projectID)
	if err != nil {
		return err
	}

	batch := repository.NewBatch()
	if err := e.cust.Transfer(batch, caller, caller, project.EscrowAccount(), amount); err != nil {
		return err
	}

	project.Raised += amount
	project.Balance += amount
	project.Contributors++

	if err := batch.PutProject(project); err != nil {
		return err
	}
	return e.repo.Commit(batch)
}

// ContributeWithVote contributes to a project enrolled in a pool, merges the
// vote ticket into its participant record and recomputes every share, all in
// one commit: no reader ever observes the vote without the reallocation.
func (e *Engine) ContributeWithVote(caller, poolID, projectID string, amount uint64, denomination string) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	if err := e.denominationSupported(denomination); err != nil {
		return err
	}

	pool, err := e.repo.GetPool(poolID)
	if err != nil {
		return err
	}
	now := e.nowUnix()
	if err := poolIsActive(pool, now); err != nil {
		return err
	}

	participant := pool.Participant(projectID)
	if participant == nil {
		return ErrNotInPool
	}

	project, err := e.repo.GetProject(projectID)
	if err != nil {
		return err
	}

	mergeVote(participant, models.VoteTicket{
		Contributor:  caller,
		Denomination: denomination,
		Amount:       amount,
	})

	if err := e.updateShares(pool, now); err != nil {
		return err
	}

	batch := repository.NewBatch()
	if err := e.cust.Transfer(batch, caller, caller, project.EscrowAccount(), amount); err != nil {
		return err
	}

	project.Raised += amount
	project.Balance += amount
	project.Contributors++

	if err := batch.PutPool(pool); err != nil {
		return err
	}
	if err := batch.PutProject(project); err != nil {
		return err
	}
	if err := e.repo.Commit(batch); err != nil {
		return err
	}

	logger.Logger.Info("Vote contributed",
		zap.String("pool_id", poolID), zap.String("project_id", projectID),
		zap.String("contributor", caller), zap.Uint64("amount", amount))
	return nil
}

// mergeVote sums a new vote into an existing ticket from the same contributor
// in the same denomination, appending only when none exists.
func mergeVote(participant *models.Participant, vote models.VoteTicket) {
	for i := range participant.Share.Votes {
		existing := &participant.Share.Votes[i]
		if existing.Contributor == vote.Contributor && existing.Denomination == vote.Denomination {
			existing.Amount += vote.Amount
			return
		}
	}
	participant.Share.Votes = append(participant.Share.Votes, vote)
}

// updateShares recomputes every participant's share with the quadratic
// funding kernel: each participant's weight is the square of the sum of
// square roots of its USD-normalized votes, and its share is that weight over
// the total. Recomputation is O(participants) per vote, which is a known
// scaling limit of keeping shares exact on every contribution.
func (e *Engine) updateShares(pool *models.Pool, now int64) error {
	prices := make(map[string]float64)
	weights := make([]float64, len(pool.Participants))
	var totalWeight float64

	for i := range pool.Participants {
		var sumOfRoots float64
		for _, vote := range pool.Participants[i].Share.Votes {
			price, err := e.freshPrice(vote.Denomination, now, prices)
			if err != nil {
				return err
			}
			voteUSD := price * float64(vote.Amount)
			sumOfRoots += math.Sqrt(voteUSD)
		}
		weights[i] = sumOfRoots * sumOfRoots
		totalWeight += weights[i]
	}

	if math.IsNaN(totalWeight) || math.IsInf(totalWeight, 0) {
		return ErrAlgorithmFailure
	}

	for i := range pool.Participants {
		if totalWeight == 0 {
			pool.Participants[i].Share.Share = 0
			continue
		}
		pool.Participants[i].Share.Share = weights[i] / totalWeight
	}
	return nil
}

// freshPrice returns the USD unit price for a denomination, caching per
// recomputation and rejecting quotes older than the configured bound.
func (e *Engine) freshPrice(denomination string, now int64, cache map[string]float64) (float64, error) {
	if price, ok := cache[denomination]; ok {
		return price, nil
	}
	if err := e.denominationSupported(denomination); err != nil {
		return 0, err
	}

	quote, err := e.oracle.Quote(denomination)
	if err != nil {
		if errors.Is(err, oracle.ErrNoQuote) {
			return 0, ErrPriceFeedUnavailable
		}
		return 0, err
	}
	if now-quote.PublishedAt.Unix() > int64(e.cfg.MaxQuoteAge.Seconds()) {
		return 0, ErrStalePrice
	}

	cache[denomination] = quote.PriceUSD
	return quote.PriceUSD, nil
}
