package models

// ProjectStatus is the lifecycle state of a project. Active may move to
// Deactivated or Closed; only Deactivated may move back to Active.
type ProjectStatus string

const (
	ProjectActive      ProjectStatus = "active"
	ProjectDeactivated ProjectStatus = "deactivated"
	ProjectClosed      ProjectStatus = "closed"
)

// Project is a fundraising recipient, independent of any pool. Pools enroll
// projects by ID, never by copy.
type Project struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Raised       uint64        `json:"raised"`  // cumulative base units received
	Goal         uint64        `json:"goal"`    // fundraising target in base units
	Balance      uint64        `json:"balance"` // base units still held in escrow
	Contributors uint64        `json:"contributors"`
	Admins       []string      `json:"admins"`
	Beneficiary  string        `json:"beneficiary"`
	Status       ProjectStatus `json:"status"`
}

// ProjectUpdateKind selects which project field an update mutates.
type ProjectUpdateKind string

const (
	ProjectUpdateName        ProjectUpdateKind = "name"
	ProjectUpdateGoal        ProjectUpdateKind = "goal"
	ProjectUpdateAddAdmin    ProjectUpdateKind = "add_admin"
	ProjectUpdateRemoveAdmin ProjectUpdateKind = "remove_admin"
	ProjectUpdateBeneficiary ProjectUpdateKind = "beneficiary"
	ProjectUpdateStatus      ProjectUpdateKind = "status"
)

type ProjectUpdate struct {
	Kind        ProjectUpdateKind `json:"kind"`
	Name        string            `json:"name,omitempty"`
	Goal        uint64            `json:"goal,omitempty"`
	Admin       string            `json:"admin,omitempty"`
	Beneficiary string            `json:"beneficiary,omitempty"`
	Status      ProjectStatus     `json:"status,omitempty"`
}

// EscrowAccount is the project's custodial account.
func (p *Project) EscrowAccount() string {
	return "project:" + p.ID
}

func (p *Project) HasAdmin(key string) bool {
	for _, a := range p.Admins {
		if a == key {
			return true
		}
	}
	return false
}
