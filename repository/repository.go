package repository

import (
	"encoding/json"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"

	"quadfund/db"
	"quadfund/models"
)

// ErrNotFound is returned when a record does not exist under its key.
var ErrNotFound = errors.New("record not found")

// Record keys are fixed-prefix addressed by the entity's identity fields.
func PoolKey(id string) string                 { return "pool:" + id }
func ProjectKey(id string) string              { return "project:" + id }
func MilestoneKey(projectID, id string) string { return "milestone:" + projectID + ":" + id }
func SourceKey(id string) string               { return "source:" + id }
func EscrowKey(account string) string          { return "escrow:" + account }

// LedgerRepositoryInterface abstracts the storage layer from the ledger
// engine. Commit applies one operation's staged writes as a single atomic
// unit.
type LedgerRepositoryInterface interface {
	GetPool(id string) (*models.Pool, error)
	GetProject(id string) (*models.Project, error)
	GetMilestone(projectID, id string) (*models.Milestone, error)
	GetSource(id string) (*models.FundingSource, error)
	GetAllPools() ([]*models.Pool, error)
	GetAllProjects() ([]*models.Project, error)
	Balance(account string) (uint64, error)
	Commit(batch *Batch) error
}

// Batch stages the writes of one operation. Nothing touches storage until the
// repository commits the whole batch.
type Batch struct {
	entries map[string][]byte
}

func NewBatch() *Batch {
	return &Batch{entries: make(map[string][]byte)}
}

// Entries exposes the staged key/value pairs for the backend applying them.
func (b *Batch) Entries() map[string][]byte {
	return b.entries
}

// PutPool stages a pool record. Pools hold variable-length collections, so
// the record's capacity is topped up here, inside the same batch that grows
// it, before the final encode.
func (b *Batch) PutPool(p *models.Pool) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if len(data) > p.Capacity {
		p.Capacity = ((len(data) / 512) + 1) * 512
		if data, err = json.Marshal(p); err != nil {
			return err
		}
	}
	b.entries[PoolKey(p.ID)] = data
	return nil
}

func (b *Batch) PutProject(p *models.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	b.entries[ProjectKey(p.ID)] = data
	return nil
}

func (b *Batch) PutMilestone(m *models.Milestone) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	b.entries[MilestoneKey(m.ProjectID, m.ID)] = data
	return nil
}

func (b *Batch) PutSource(s *models.FundingSource) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	b.entries[SourceKey(s.ID)] = data
	return nil
}

// SetBalance stages an escrow balance. The custodian is the only writer.
func (b *Batch) SetBalance(account string, amount uint64) error {
	data, err := json.Marshal(amount)
	if err != nil {
		return err
	}
	b.entries[EscrowKey(account)] = data
	return nil
}

// LedgerRepository implements the LedgerRepositoryInterface using LevelDB as
// the storage backend
type LedgerRepository struct {
	db *db.LevelDB
}

// NewLedgerRepository creates and returns a new LedgerRepository instance
func NewLedgerRepository(db *db.LevelDB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) get(key string, out interface{}) error {
	data, err := r.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, out)
}

// GetPool retrieves a pool record by its ID
func (r *LedgerRepository) GetPool(id string) (*models.Pool, error) {
	var pool models.Pool
	if err := r.get(PoolKey(id), &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

// GetProject retrieves a project record by its ID
func (r *LedgerRepository) GetProject(id string) (*models.Project, error) {
	var project models.Project
	if err := r.get(ProjectKey(id), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetMilestone retrieves a milestone nested under its owning project
func (r *LedgerRepository) GetMilestone(projectID, id string) (*models.Milestone, error) {
	var milestone models.Milestone
	if err := r.get(MilestoneKey(projectID, id), &milestone); err != nil {
		return nil, err
	}
	return &milestone, nil
}

// GetSource retrieves a funding source record by its ID
func (r *LedgerRepository) GetSource(id string) (*models.FundingSource, error) {
	var source models.FundingSource
	if err := r.get(SourceKey(id), &source); err != nil {
		return nil, err
	}
	return &source, nil
}

// GetAllPools retrieves every pool record
func (r *LedgerRepository) GetAllPools() ([]*models.Pool, error) {
	iter := r.db.NewIterator([]byte("pool:"))
	defer iter.Release()

	var pools []*models.Pool
	for iter.Next() {
		var pool models.Pool
		if err := json.Unmarshal(iter.Value(), &pool); err != nil {
			return nil, err
		}
		pools = append(pools, &pool)
	}
	return pools, iter.Error()
}

// GetAllProjects retrieves every project record
func (r *LedgerRepository) GetAllProjects() ([]*models.Project, error) {
	iter := r.db.NewIterator([]byte("project:"))
	defer iter.Release()

	var projects []*models.Project
	for iter.Next() {
		var project models.Project
		if err := json.Unmarshal(iter.Value(), &project); err != nil {
			return nil, err
		}
		projects = append(projects, &project)
	}
	return projects, iter.Error()
}

// Balance returns an escrow account's balance. Unknown accounts hold zero.
func (r *LedgerRepository) Balance(account string) (uint64, error) {
	var amount uint64
	err := r.get(EscrowKey(account), &amount)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// Commit applies all staged writes in one LevelDB batch
func (r *LedgerRepository) Commit(batch *Batch) error {
	var lb leveldb.Batch
	for key, value := range batch.Entries() {
		lb.Put([]byte(key), value)
	}
	return r.db.Write(&lb)
}
