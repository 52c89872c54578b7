package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"quadfund/custodian"
	"quadfund/engine"
	"quadfund/logger"
	"quadfund/models"
	"quadfund/repository"
)

// Handler contains the HTTP handlers for the funding ledger API
type Handler struct {
	Engine *engine.Engine
}

// NewHandler creates and returns a new Handler instance
func NewHandler(e *engine.Engine) *Handler {
	return &Handler{Engine: e}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

// statusForError maps each protocol error class onto an HTTP status, so the
// caller can tell a retryable failure from a terminal one.
func statusForError(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotAuthorized),
		errors.Is(err, custodian.ErrBadAuthority):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrPriceFeedUnavailable),
		errors.Is(err, engine.ErrStalePrice):
		return http.StatusBadGateway
	case errors.Is(err, engine.ErrNameTooLong),
		errors.Is(err, engine.ErrTooManyAdmins),
		errors.Is(err, engine.ErrPoolInvalidStart),
		errors.Is(err, engine.ErrExtendDateInvalid),
		errors.Is(err, engine.ErrUnknownUpdateField),
		errors.Is(err, engine.ErrDenominationNotSupported):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrAlgorithmFailure):
		return http.StatusInternalServerError
	default:
		// Lifecycle, enrollment, custody and duplicate-claim conflicts.
		return http.StatusConflict
	}
}

func decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		logger.Logger.Error("Failed to decode request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid request payload",
		})
		return false
	}
	return true
}

// CreateProject handles POST requests to register a new project
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Admins      []string `json:"admins"`
		Beneficiary string   `json:"beneficiary"`
		Goal        uint64   `json:"goal"`
	}
	if !decode(w, r, &req) {
		return
	}

	project, err := h.Engine.CreateProject(req.ID, req.Name, req.Admins, req.Beneficiary, req.Goal)
	if err != nil {
		logger.Logger.Error("Failed to create project", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Project created successfully",
		"project": project,
	})
}

// ListProjects handles GET requests for all project records
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Engine.ListProjects()
	if err != nil {
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// GetProject handles GET requests for a single project record
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.Engine.GetProject(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// UpdateProject handles admin-gated project field updates
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		models.ProjectUpdate
	}
	if !decode(w, r, &req) {
		return
	}

	if err := h.Engine.UpdateProject(req.Caller, mux.Vars(r)["id"], req.ProjectUpdate); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Project updated successfully"})
}

// Contribute handles plain contributions into a project escrow
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller       string `json:"caller"`
		Amount       uint64 `json:"amount"`
		Denomination string `json:"denomination"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := h.Engine.Contribute(req.Caller, mux.Vars(r)["id"], req.Amount, req.Denomination); err != nil {
		logger.Logger.Error("Failed to contribute", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Contribution recorded"})
}

// DeactivateProject handles POST requests to deactivate a project
func (h *Handler) DeactivateProject(w http.ResponseWriter, r *http.Request) {
	h.projectStatusChange(w, r, h.Engine.DeactivateProject, "Project deactivated")
}

// ReactivateProject handles POST requests to reactivate a project
func (h *Handler) ReactivateProject(w http.ResponseWriter, r *http.Request) {
	h.projectStatusChange(w, r, h.Engine.ReactivateProject, "Project reactivated")
}

// CloseProject handles POST requests to permanently close a project
func (h *Handler) CloseProject(w http.ResponseWriter, r *http.Request) {
	h.projectStatusChange(w, r, h.Engine.CloseProject, "Project closed")
}

func (h *Handler) projectStatusChange(w http.ResponseWriter, r *http.Request, op func(caller, id string) error, message string) {
	var req struct {
		Caller string `json:"caller"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := op(req.Caller, mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

// Withdraw handles partial withdrawals from a project escrow to its beneficiary
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		Amount uint64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.Engine.Withdraw(req.Caller, mux.Vars(r)["id"], req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Withdrawal complete"})
}

// WithdrawAll drains a project escrow to its beneficiary
func (h *Handler) WithdrawAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if !decode(w, r, &req) {
		return
	}
	amount, err := h.Engine.WithdrawAll(req.Caller, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Withdrawal complete",
		"amount":  amount,
	})
}

// CreateMilestone handles POST requests to attach a milestone to a project
func (h *Handler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller     string  `json:"caller"`
		ID         string  `json:"id"`
		Name       string  `json:"name"`
		Percentage float64 `json:"percentage"`
	}
	if !decode(w, r, &req) {
		return
	}
	milestone, err := h.Engine.CreateMilestone(req.Caller, mux.Vars(r)["id"], req.ID, req.Name, req.Percentage)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Milestone created successfully",
		"milestone": milestone,
	})
}

// GetMilestone handles GET requests for a single milestone
func (h *Handler) GetMilestone(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	milestone, err := h.Engine.GetMilestone(vars["id"], vars["milestone_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, milestone)
}

// ReconcileMilestone opens a milestone's reconciliation window
func (h *Handler) ReconcileMilestone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if !decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	if err := h.Engine.ReconcileMilestone(req.Caller, vars["id"], vars["milestone_id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Milestone reconciling"})
}

// CloseMilestone closes a milestone after its reconciliation window
func (h *Handler) CloseMilestone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if !decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	if err := h.Engine.CloseMilestone(req.Caller, vars["id"], vars["milestone_id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Milestone closed"})
}

// CreatePool handles POST requests to open a new funding round
func (h *Handler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string            `json:"id"`
		Name   string            `json:"name"`
		Start  int64             `json:"start"`
		End    int64             `json:"end"`
		Admins []string          `json:"admins"`
		Access models.PoolAccess `json:"access"`
	}
	if !decode(w, r, &req) {
		return
	}

	pool, err := h.Engine.CreatePool(req.ID, req.Name, req.Start, req.End, req.Admins, req.Access)
	if err != nil {
		logger.Logger.Error("Failed to create pool", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Pool created successfully",
		"pool":    pool,
	})
}

// ListPools handles GET requests for all pool records
func (h *Handler) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.Engine.ListPools()
	if err != nil {
		writeError(w, err)
		return
	}
	if pools == nil {
		pools = []*models.Pool{}
	}
	writeJSON(w, http.StatusOK, pools)
}

// GetPool handles GET requests for a single pool record
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.Engine.GetPool(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// UpdatePool handles admin-gated pool field updates
func (h *Handler) UpdatePool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		models.PoolUpdate
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.Engine.UpdatePool(req.Caller, mux.Vars(r)["id"], req.PoolUpdate); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pool updated successfully"})
}

// ExtendPool pushes a pool's end date forward
func (h *Handler) ExtendPool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		NewEnd int64  `json:"new_end"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.Engine.ExtendPoolDuration(req.Caller, mux.Vars(r)["id"], req.NewEnd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pool duration extended"})
}

// JoinPool self-enrolls a project into an open pool
func (h *Handler) JoinPool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller    string `json:"caller"`
		ProjectID string `json:"project_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.Engine.JoinPool(req.Caller, req.ProjectID, mux.Vars(r)["id"]); err != nil {
		logger.Logger.Error("Failed to join pool", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Project joined pool"})
}

// AddProject enrolls a project into a manual pool
func (h *Handler) AddProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller    string `json:"caller"`
		ProjectID string `json:"project_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.Engine.AddProject(req.Caller, req.ProjectID, mux.Vars(r)["id"]); err != nil {
		logger.Logger.Error("Failed to add project to pool", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Project added to pool"})
}

// FundPool injects capital from a registered source into a pool escrow
func (h *Handler) FundPool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller       string `json:"caller"`
		SourceID     string `json:"source_id"`
		Amount       uint64 `json:"amount"`
		Denomination string `json:"denomination"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.Engine.FundPool(req.Caller, mux.Vars(r)["id"], req.SourceID, req.Amount, req.Denomination); err != nil {
		logger.Logger.Error("Failed to fund pool", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Pool funded"})
}

// ContributeWithVote records a valued vote for an enrolled project and
// recomputes all shares
func (h *Handler) ContributeWithVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller       string `json:"caller"`
		ProjectID    string `json:"project_id"`
		Amount       uint64 `json:"amount"`
		Denomination string `json:"denomination"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.Engine.ContributeWithVote(req.Caller, mux.Vars(r)["id"], req.ProjectID, req.Amount, req.Denomination); err != nil {
		logger.Logger.Error("Failed to contribute with vote", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Vote recorded"})
}

// ClaimPayout converts an enrolled project's share into its one-time payout
func (h *Handler) ClaimPayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller    string `json:"caller"`
		ProjectID string `json:"project_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	payout, err := h.Engine.ClaimPayout(req.Caller, mux.Vars(r)["id"], req.ProjectID)
	if err != nil {
		logger.Logger.Error("Failed to claim payout", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Payout claimed",
		"payout":  payout,
	})
}

// WithdrawFromRound reclaims un-awarded pool capital to the calling admin
func (h *Handler) WithdrawFromRound(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if !decode(w, r, &req) {
		return
	}
	amount, err := h.Engine.WithdrawFundsFromRound(req.Caller, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Round funds withdrawn",
		"amount":  amount,
	})
}

// CreateSource registers an external funding source
func (h *Handler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Authority string `json:"authority"`
	}
	if !decode(w, r, &req) {
		return
	}
	source, err := h.Engine.CreateSource(req.ID, req.Name, req.Authority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Source created successfully",
		"source":  source,
	})
}

// Deposit credits external value into an escrow account
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
		Amount  uint64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.Engine.Deposit(req.Account, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deposit recorded"})
}

// GetBalance reads an escrow account balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	balance, err := h.Engine.Balance(account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"balance": balance,
	})
}
