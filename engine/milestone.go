package engine

import (
	"go.uber.org/zap"

	"quadfund/logger"
	"quadfund/models"
	"quadfund/repository"
)

// CreateMilestone attaches a funding checkpoint to a project.
func (e *Engine) CreateMilestone(caller, projectID, id, name string, percentage float64) (*models.Milestone, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	if err := e.checkName(name); err != nil {
		return nil, err
	}

	project, err := e.repo.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if !project.HasAdmin(caller) {
		return nil, ErrNotAuthorized
	}
	if _, err := e.repo.GetMilestone(projectID, id); err == nil {
		return nil, ErrAlreadyExists
	}

	milestone := &models.Milestone{
		ID:         id,
		ProjectID:  projectID,
		Name:       name,
		Percentage: percentage,
		Status:     models.MilestoneActive,
	}

	batch := repository.NewBatch()
	if err := batch.PutMilestone(milestone); err != nil {
		return nil, err
	}
	if err := e.repo.Commit(batch); err != nil {
		return nil, err
	}
	return milestone, nil
}

// ReconcileMilestone moves an active milestone into its reconciliation
// window. The milestone may only be closed once the window has elapsed.
func (e *Engine) ReconcileMilestone(caller, projectID, id string) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	project, err := e.repo.GetProject(projectID)
	if err != nil {
		return err
	}
	if !project.HasAdmin(caller) {
		return ErrNotAuthorized
	}

	milestone, err := e.repo.GetMilestone(projectID, id)
	if err != nil {
		return err
	}
	switch milestone.Status {
	case models.MilestoneReconciling:
		return ErrMilestoneReconciling
	case models.MilestoneClosed:
		return ErrClosedMilestone
	}

	milestone.Status = models.MilestoneReconciling
	milestone.Close = e.nowUnix() + models.ReconcileWindow

	batch := repository.NewBatch()
	if err := batch.PutMilestone(milestone); err != nil {
		return err
	}
	if err := e.repo.Commit(batch); err != nil {
		return err
	}

	logger.Logger.Info("Milestone reconciling",
		zap.String("project_id", projectID), zap.String("milestone_id", id),
		zap.Int64("close", milestone.Close))
	return nil
}

// CloseMilestone retires a milestone once its reconciliation window has
// elapsed.
func (e *Engine) CloseMilestone(caller, projectID, id string) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	project, err := e.repo.GetProject(projectID)
	if err != nil {
		return err
	}
	if !project.HasAdmin(caller) {
		return ErrNotAuthorized
	}

	milestone, err := e.repo.GetMilestone(projectID, id)
	if err != nil {
		return err
	}
	switch milestone.Status {
	case models.MilestoneActive:
		return ErrOpenMilestone
	case models.MilestoneClosed:
		return ErrClosedMilestone
	}
	if e.nowUnix() < milestone.Close {
		return ErrMilestoneReconciling
	}

	milestone.Status = models.MilestoneClosed

	batch := repository.NewBatch()
	if err := batch.PutMilestone(milestone); err != nil {
		return err
	}
	return e.repo.Commit(batch)
}
