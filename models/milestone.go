package models

// MilestoneStatus is monotonic: Active -> Reconciling -> Closed.
type MilestoneStatus string

const (
	MilestoneActive      MilestoneStatus = "active"
	MilestoneReconciling MilestoneStatus = "reconciling"
	MilestoneClosed      MilestoneStatus = "closed"
)

// ReconcileWindow is how long a milestone stays in Reconciling before it may
// be closed: 3 days in seconds.
const ReconcileWindow int64 = 259200

// Milestone is a funding checkpoint scoped to one project.
type Milestone struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"project_id"`
	Name       string          `json:"name"`
	Percentage float64         `json:"percentage"` // portion of project funds put up
	Close      int64           `json:"close"`      // unix seconds; end of the reconcile window
	Status     MilestoneStatus `json:"status"`
}
