package engine

import (
	"go.uber.org/zap"

	"quadfund/custodian"
	"quadfund/logger"
	"quadfund/models"
	"quadfund/repository"
)

func projectIsActive(p *models.Project) error {
	switch p.Status {
	case models.ProjectActive:
		return nil
	case models.ProjectDeactivated:
		return ErrDeactivatedProject
	default:
		return ErrClosedProject
	}
}

// CreateProject registers a new fundraising recipient.
func (e *Engine) CreateProject(id, name string, admins []string, beneficiary string, goal uint64) (*models.Project, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	if err := e.checkName(name); err != nil {
		return nil, err
	}
	if err := e.checkAdmins(admins); err != nil {
		return nil, err
	}
	if _, err := e.repo.GetProject(id); err == nil {
		return nil, ErrAlreadyExists
	}

	project := &models.Project{
		ID:          id,
		Name:        name,
		Goal:        goal,
		Admins:      admins,
		Beneficiary: beneficiary,
		Status:      models.ProjectActive,
	}

	batch := repository.NewBatch()
	if err := batch.PutProject(project); err != nil {
		return nil, err
	}
	if err := e.repo.Commit(batch); err != nil {
		return nil, err
	}

	logger.Logger.Info("Project created", zap.String("project_id", id))
	return project, nil
}

// UpdateProject dispatches an admin-gated field update.
func (e *Engine) UpdateProject(caller, projectID string, update models.ProjectUpdate) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	project, err := e.repo.GetProject(projectID)
	if err != nil {
		return err
	}
	if !project.HasAdmin(caller) {
		return ErrNotAuthorized
	}

	switch update.Kind {
	case models.ProjectUpdateName:
		if err := e.checkName(update.Name); err != nil {
			return err
		}
		project.Name = update.Name
	case models.ProjectUpdateGoal:
		project.Goal = update.Goal
	case models.ProjectUpdateAddAdmin:
		if !project.HasAdmin(update.Admin) {
			if len(project.Admins) >= e.cfg.MaxAdmins {
				return ErrTooManyAdmins
			}
			project.Admins = append(project.Admins, update.Admin)
		}
	case models.ProjectUpdateRemoveAdmin:
		admins := project.Admins[:0]
		for _, a := range project.Admins {
			if a != update.Admin {
				admins = append(admins, a)
			}
		}
		project.Admins = admins
	case models.ProjectUpdateBeneficiary:
		project.Beneficiary = update.Beneficiary
	case models.ProjectUpdateStatus:
		project.Status = update.Status
	default:
		return ErrUnknownUpdateField
	}

	batch := repository.NewBatch()
	if err := batch.PutProject(project); err != nil {
		return err
	}
	return e.repo.Commit(batch)
}

// DeactivateProject takes an active project out of service.
func (e *Engine) DeactivateProject(caller, projectID string) error {
	return e.setProjectStatus(caller, projectID, models.ProjectDeactivated, true)
}

// ReactivateProject brings a deactivated project back. Closed is final.
func (e *Engine) ReactivateProject(caller, projectID string) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	project, err := e.repo.GetProject(projectID)
	if err != nil {
		return err
	}
	if !project.HasAdmin(caller) {
		return ErrNotAuthorized
	}
	if project.Status == models.ProjectClosed {
		return ErrClosedProject
	}
	project.Status = models.ProjectActive

	batch := repository.NewBatch()
	if err := batch.PutProject(project); err != nil {
		return err
	}
	return e.repo.Commit(batch)
}

// CloseProject permanently retires an active project.
func (e *Engine) CloseProject(caller, projectID string) error {
	return e.setProjectStatus(caller, projectID, models.ProjectClosed, true)
}

func (e *Engine) setProjectStatus(caller, projectID string, status models.ProjectStatus, requireActive bool) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	project, err := e.repo.GetProject(projectID)
	if err != nil {
		return err
	}
	if !project.HasAdmin(caller) {
		return ErrNotAuthorized
	}
	if requireActive {
		if err := projectIsActive(project); err != nil {
			return err
		}
	}
	project.Status = status

	batch := repository.NewBatch()
	if err := batch.PutProject(project); err != nil {
		return err
	}
	if err := e.repo.Commit(batch); err != nil {
		return err
	}

	logger.Logger.Info("Project status changed",
		zap.String("project_id", projectID), zap.String("status", string(status)))
	return nil
}

// Withdraw sends part of a project's escrow balance to its beneficiary.
func (e *Engine) Withdraw(caller, projectID string, amount uint64) error {
	e.mux.Lock()
	defer e.mux.Unlock()
	_, err := e.withdraw(caller, projectID, &amount)
	return err
}

// WithdrawAll drains the project's escrow balance to its beneficiary.
func (e *Engine) WithdrawAll(caller, projectID string) (uint64, error) {
	e.mux.Lock()
	defer e.mux.Unlock()
	return e.withdraw(caller, projectID, nil)
}

func (e *Engine) withdraw(caller, projectID string, amount *uint64) (uint64, error) {
	project, err := e.repo.GetProject(projectID)
	if err != nil {
		return 0, err
	}
	if !project.HasAdmin(caller) {
		return 0, ErrNotAuthorized
	}

	value := project.Balance
	if amount != nil {
		value = *amount
	}
	if value > project.Balance {
		return 0, custodian.ErrInsufficientFunds
	}

	batch := repository.NewBatch()
	escrow := project.EscrowAccount()
	if err := e.cust.Transfer(batch, escrow, escrow, project.Beneficiary, value); err != nil {
		return 0, err
	}
	project.Balance -= value

	if err := batch.PutProject(project); err != nil {
		return 0, err
	}
	if err := e.repo.Commit(batch); err != nil {
		return 0, err
	}

	logger.Logger.Info("Project withdrawal",
		zap.String("project_id", projectID), zap.Uint64("amount", value))
	return value, nil
}
