package routers

import (
	"quadfund/handlers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes for the funding ledger
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {
	r.Use(handlers.RequestID)

	// Projects: creation, reads, admin-gated mutation and custody
	r.HandleFunc("/projects", h.CreateProject).Methods("POST")
	r.HandleFunc("/projects", h.ListProjects).Methods("GET")
	r.HandleFunc("/projects/{id}", h.GetProject).Methods("GET")
	r.HandleFunc("/projects/{id}/update", h.UpdateProject).Methods("POST")
	r.HandleFunc("/projects/{id}/contribute", h.Contribute).Methods("POST")
	r.HandleFunc("/projects/{id}/deactivate", h.DeactivateProject).Methods("POST")
	r.HandleFunc("/projects/{id}/reactivate", h.ReactivateProject).Methods("POST")
	r.HandleFunc("/projects/{id}/close", h.CloseProject).Methods("POST")
	r.HandleFunc("/projects/{id}/withdraw", h.Withdraw).Methods("POST")
	r.HandleFunc("/projects/{id}/withdraw-all", h.WithdrawAll).Methods("POST")

	// Milestones: the secondary reconciliation state machine
	r.HandleFunc("/projects/{id}/milestones", h.CreateMilestone).Methods("POST")
	r.HandleFunc("/projects/{id}/milestones/{milestone_id}", h.GetMilestone).Methods("GET")
	r.HandleFunc("/projects/{id}/milestones/{milestone_id}/reconcile", h.ReconcileMilestone).Methods("POST")
	r.HandleFunc("/projects/{id}/milestones/{milestone_id}/close", h.CloseMilestone).Methods("POST")

	// Pools: the funding round lifecycle, enrollment, voting and claims
	r.HandleFunc("/pools", h.CreatePool).Methods("POST")
	r.HandleFunc("/pools", h.ListPools).Methods("GET")
	r.HandleFunc("/pools/{id}", h.GetPool).Methods("GET")
	r.HandleFunc("/pools/{id}/update", h.UpdatePool).Methods("POST")
	r.HandleFunc("/pools/{id}/extend", h.ExtendPool).Methods("POST")
	r.HandleFunc("/pools/{id}/join", h.JoinPool).Methods("POST")
	r.HandleFunc("/pools/{id}/projects", h.AddProject).Methods("POST")
	r.HandleFunc("/pools/{id}/fund", h.FundPool).Methods("POST")
	r.HandleFunc("/pools/{id}/vote", h.ContributeWithVote).Methods("POST")
	r.HandleFunc("/pools/{id}/claim", h.ClaimPayout).Methods("POST")
	r.HandleFunc("/pools/{id}/withdraw", h.WithdrawFromRound).Methods("POST")

	// Funding sources and escrow accounts
	r.HandleFunc("/sources", h.CreateSource).Methods("POST")
	r.HandleFunc("/escrow/deposit", h.Deposit).Methods("POST")
	r.HandleFunc("/escrow/{account}", h.GetBalance).Methods("GET")
}
