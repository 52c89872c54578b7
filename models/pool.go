package models

// PoolStatus is the lifecycle state of a funding pool.
type PoolStatus string

const (
	PoolPendingStart PoolStatus = "pending_start"
	PoolActive       PoolStatus = "active"
	PoolDistributed  PoolStatus = "distributed"
	PoolClosed       PoolStatus = "closed"
)

// PoolAccess controls how projects enter a pool: open pools accept
// self-enrollment, manual pools require a pool admin to add each project.
type PoolAccess string

const (
	AccessOpen   PoolAccess = "open"
	AccessManual PoolAccess = "manual"
)

type Pool struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	TotalFunding uint64          `json:"total_funding"` // base units collected into escrow
	Balance      uint64          `json:"balance"`       // base units still held in escrow
	Start        int64           `json:"start"`         // unix seconds
	End          int64           `json:"end"`           // unix seconds, extension-only
	Admins       []string        `json:"admins"`
	Participants []Participant   `json:"participants"`
	Funders      []FundingTicket `json:"funders"`
	Status       PoolStatus      `json:"status"`
	Access       PoolAccess      `json:"access"`
	Capacity     int             `json:"capacity"` // allocated record size, grown with the record
}

// Participant is one project's enrollment in a pool. Claimed only ever
// moves false -> true.
type Participant struct {
	ProjectID string    `json:"project_id"`
	Claimed   bool      `json:"claimed"`
	Share     PoolShare `json:"share_data"`
}

// PoolShare holds a participant's normalized share and the votes behind it.
// Across one pool the shares sum to 1 whenever any votes exist, and are all
// zero otherwise.
type PoolShare struct {
	Share float64      `json:"share"`
	Votes []VoteTicket `json:"votes"`
}

// VoteTicket is one contributor's valued vote for a participant. Votes from
// the same contributor in the same denomination are merged, not appended.
type VoteTicket struct {
	Contributor  string `json:"contributor"`
	Denomination string `json:"denomination"`
	Amount       uint64 `json:"amount"`
}

// FundingTicket records external capital injected into the pool escrow.
type FundingTicket struct {
	SourceID     string `json:"source_id"`
	Denomination string `json:"denomination"`
	Amount       uint64 `json:"amount"`
}

// PoolUpdateKind selects which pool field an update mutates.
type PoolUpdateKind string

const (
	PoolUpdateName        PoolUpdateKind = "name"
	PoolUpdateAddAdmin    PoolUpdateKind = "add_admin"
	PoolUpdateRemoveAdmin PoolUpdateKind = "remove_admin"
	PoolUpdateAccess      PoolUpdateKind = "access"
	PoolUpdateStatus      PoolUpdateKind = "status"
)

// PoolUpdate is a tagged union: Kind picks the arm, the matching value field
// carries the payload.
type PoolUpdate struct {
	Kind   PoolUpdateKind `json:"kind"`
	Name   string         `json:"name,omitempty"`
	Admin  string         `json:"admin,omitempty"`
	Access PoolAccess     `json:"access,omitempty"`
	Status PoolStatus     `json:"status,omitempty"`
}

// EscrowAccount is the pool's own custodial account. Transfers out of it are
// authorized by the pool's derived identity, not by any human caller.
func (p *Pool) EscrowAccount() string {
	return "pool:" + p.ID
}

// Participant returns the enrollment record for a project, or nil.
func (p *Pool) Participant(projectID string) *Participant {
	for i := range p.Participants {
		if p.Participants[i].ProjectID == projectID {
			return &p.Participants[i]
		}
	}
	return nil
}

func (p *Pool) HasAdmin(key string) bool {
	for _, a := range p.Admins {
		if a == key {
			return true
		}
	}
	return false
}

// ShareSum returns the sum of all participant shares.
func (p *Pool) ShareSum() float64 {
	var sum float64
	for i := range p.Participants {
		sum += p.Participants[i].Share.Share
	}
	return sum
}
