package engine_test

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"quadfund/custodian"
	"quadfund/engine"
	"quadfund/logger"
	"quadfund/models"
	"quadfund/oracle"
	"quadfund/repository"
)

// memRepo is an in-memory LedgerRepositoryInterface. Reads return decoded
// copies and writes only land on Commit, matching the real store's
// all-or-nothing behavior.
type memRepo struct {
	mu      sync.Mutex
	records map[string][]byte
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string][]byte)}
}

func (m *memRepo) get(key string, out interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.records[key]
	if !ok {
		return repository.ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func (m *memRepo) GetPool(id string) (*models.Pool, error) {
	var pool models.Pool
	if err := m.get(repository.PoolKey(id), &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

func (m *memRepo) GetProject(id string) (*models.Project, error) {
	var project models.Project
	if err := m.get(repository.ProjectKey(id), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (m *memRepo) GetMilestone(projectID, id string) (*models.Milestone, error) {
	var milestone models.Milestone
	if err := m.get(repository.MilestoneKey(projectID, id), &milestone); err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (m *memRepo) GetSource(id string) (*models.FundingSource, error) {
	var source models.FundingSource
	if err := m.get(repository.SourceKey(id), &source); err != nil {
		return nil, err
	}
	return &source, nil
}

func (m *memRepo) GetAllPools() ([]*models.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pools []*models.Pool
	for key, data := range m.records {
		if len(key) > 5 && key[:5] == "pool:" {
			var pool models.Pool
			if err := json.Unmarshal(data, &pool); err != nil {
				return nil, err
			}
			pools = append(pools, &pool)
		}
	}
	return pools, nil
}

func (m *memRepo) GetAllProjects() ([]*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var projects []*models.Project
	for key, data := range m.records {
		if len(key) > 8 && key[:8] == "project:" {
			var project models.Project
			if err := json.Unmarshal(data, &project); err != nil {
				return nil, err
			}
			projects = append(projects, &project)
		}
	}
	return projects, nil
}

func (m *memRepo) Balance(account string) (uint64, error) {
	var amount uint64
	err := m.get(repository.EscrowKey(account), &amount)
	if err == repository.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (m *memRepo) Commit(batch *repository.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range batch.Entries() {
		m.records[key] = value
	}
	return nil
}

// fakeClock drives the engine's and oracle's view of time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var baseTime = time.Unix(1700000000, 0)

type fixture struct {
	engine *engine.Engine
	repo   *memRepo
	oracle *oracle.StaticOracle
	clock  *fakeClock
}

func newFixture() *fixture {
	logger.Logger = zap.NewNop()

	clock := &fakeClock{now: baseTime}
	repo := newMemRepo()
	cust := custodian.NewLedgerCustodian(repo)
	po := oracle.NewStaticOracle(map[string]float64{
		"usdc": 1.0,
		"sol":  150.0,
	}, clock.Now)

	eng := engine.NewEngine(repo, cust, po, engine.Config{
		SupportedDenominations: []string{"usdc", "sol"},
		MaxQuoteAge:            60 * time.Second,
	})
	eng.SetClock(clock.Now)

	return &fixture{engine: eng, repo: repo, oracle: po, clock: clock}
}

// refreshQuotes republishes the feed table at the current fake time.
func (f *fixture) refreshQuotes() {
	f.oracle.SetQuote("usdc", 1.0)
	f.oracle.SetQuote("sol", 150.0)
}
