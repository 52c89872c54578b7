package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"quadfund/custodian"
	"quadfund/engine"
	"quadfund/handlers"
	"quadfund/logger"
	"quadfund/models"
	"quadfund/oracle"
	"quadfund/repository"
	"quadfund/routers"
)

type mockRepo struct {
	mu      sync.Mutex
	records map[string][]byte
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[string][]byte)}
}

func (m *mockRepo) get(key string, out interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.records[key]
	if !ok {
		return repository.ErrNotFound
	}
	// decode a copy to simulate DB retrieval
	return json.Unmarshal(data, out)
}

func (m *mockRepo) GetPool(id string) (*models.Pool, error) {
	var pool models.Pool
	if err := m.get(repository.PoolKey(id), &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

func (m *mockRepo) GetProject(id string) (*models.Project, error) {
	var project models.Project
	if err := m.get(repository.ProjectKey(id), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (m *mockRepo) GetMilestone(projectID, id string) (*models.Milestone, error) {
	var milestone models.Milestone
	if err := m.get(repository.MilestoneKey(projectID, id), &milestone); err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (m *mockRepo) GetSource(id string) (*models.FundingSource, error) {
	var source models.FundingSource
	if err := m.get(repository.SourceKey(id), &source); err != nil {
		return nil, err
	}
	return &source, nil
}

func (m *mockRepo) GetAllPools() ([]*models.Pool, error) {
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

func (m *mockRepo) GetAllProjects() ([]*models.Project, error) {
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

func (m *mockRepo) Balance(account string) (uint64, error) {
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

func (m *mockRepo) Commit(batch *repository.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range batch.Entries() {
		m.records[key] = value
	}
	return nil
}

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

type testEnv struct {
	router *mux.Router
	repo   *mockRepo
	clock  *fakeClock
	oracle *oracle.StaticOracle
}

func testServer() *testEnv {
	logger.Logger = zap.NewNop()

	repo := newMockRepo()
	clock := &fakeClock{now: baseTime}
	po := oracle.NewStaticOracle(map[string]float64{"usdc": 1.0}, clock.Now)

	eng := engine.NewEngine(repo, custodian.NewLedgerCustodian(repo), po, engine.Config{
		SupportedDenominations: []string{"usdc"},
		MaxQuoteAge:            60 * time.Second,
	})
	eng.SetClock(clock.Now)

	router := mux.NewRouter()
	routers.RegisterRoutes(router, handlers.NewHandler(eng))
	return &testEnv{router: router, repo: repo, clock: clock, oracle: po}
}

func (env *testEnv) post(t *testing.T, path string, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	bodyJSON, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(bodyJSON))
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	return res
}

func (env *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	return res
}

func (env *testEnv) mustPost(t *testing.T, path string, body map[string]interface{}) {
	t.Helper()
	res := env.post(t, path, body)
	if res.Code != http.StatusOK && res.Code != http.StatusCreated {
		t.Fatalf("POST %s failed, code=%d body=%s", path, res.Code, res.Body.String())
	}
}

func TestCreateProject_Success(t *testing.T) {
	env := testServer()

	res := env.post(t, "/projects", map[string]interface{}{
		"id":          "alpha",
		"name":        "Project Alpha",
		"admins":      []string{"alice"},
		"beneficiary": "alice-payout",
		"goal":        1000,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d, body: %s", res.Code, res.Body.String())
	}

	got, err := env.repo.GetProject("alpha")
	if err != nil {
		t.Fatalf("expected project stored, got error: %v", err)
	}
	if got.Status != models.ProjectActive {
		t.Fatalf("expected active project, got %q", got.Status)
	}
}

func TestListPoolsAndProjects(t *testing.T) {
	env := testServer()

	res := env.get(t, "/pools")
	if res.Code != http.StatusOK {
		t.Fatalf("expected empty list 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var pools []models.Pool
	if err := json.Unmarshal(res.Body.Bytes(), &pools); err != nil {
		t.Fatalf("failed to decode pool list: %v", err)
	}
	if len(pools) != 0 {
		t.Fatalf("expected no pools, got %d", len(pools))
	}

	env.mustPost(t, "/pools", map[string]interface{}{
		"id":     "pool1",
		"name":   "Round One",
		"start":  baseTime.Unix() + 100,
		"end":    baseTime.Unix() + 1000,
		"admins": []string{"pooladmin"},
		"access": "open",
	})
	env.mustPost(t, "/pools", map[string]interface{}{
		"id":     "pool2",
		"name":   "Round Two",
		"start":  baseTime.Unix() + 100,
		"end":    baseTime.Unix() + 1000,
		"admins": []string{"pooladmin"},
		"access": "manual",
	})
	env.mustPost(t, "/projects", map[string]interface{}{
		"id": "alpha", "name": "Project Alpha",
		"admins": []string{"alice"}, "beneficiary": "alice-payout", "goal": 1000,
	})

	res = env.get(t, "/pools")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	if err := json.Unmarshal(res.Body.Bytes(), &pools); err != nil {
		t.Fatalf("failed to decode pool list: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}

	res = env.get(t, "/projects")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var projects []models.Project
	if err := json.Unmarshal(res.Body.Bytes(), &projects); err != nil {
		t.Fatalf("failed to decode project list: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != "alpha" {
		t.Fatalf("expected project alpha, got %+v", projects)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	env := testServer()

	res := env.get(t, "/projects/missing")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestCreatePool_StartInPast(t *testing.T) {
	env := testServer()

	res := env.post(t, "/pools", map[string]interface{}{
		"id":     "pool1",
		"name":   "Late Round",
		"start":  baseTime.Unix() - 10,
		"end":    baseTime.Unix() + 1000,
		"admins": []string{"pooladmin"},
		"access": "open",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestJoinPool_Duplicate(t *testing.T) {
	env := testServer()

	env.mustPost(t, "/pools", map[string]interface{}{
		"id":     "pool1",
		"name":   "Test Round",
		"start":  baseTime.Unix() + 100,
		"end":    baseTime.Unix() + 1000,
		"admins": []string{"pooladmin"},
		"access": "open",
	})
	env.mustPost(t, "/projects", map[string]interface{}{
		"id": "alpha", "name": "Project Alpha",
		"admins": []string{"alice"}, "beneficiary": "alice-payout", "goal": 1000,
	})

	join := map[string]interface{}{"caller": "alice", "project_id": "alpha"}
	res := env.post(t, "/pools/pool1/join", join)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first join 200, got %d, body: %s", res.Code, res.Body.String())
	}

	res = env.post(t, "/pools/pool1/join", join)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected duplicate join 409, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestWithdraw_RequiresAdmin(t *testing.T) {
	env := testServer()

	env.mustPost(t, "/projects", map[string]interface{}{
		"id": "alpha", "name": "Project Alpha",
		"admins": []string{"alice"}, "beneficiary": "alice-payout", "goal": 1000,
	})

	res := env.post(t, "/projects/alpha/withdraw", map[string]interface{}{
		"caller": "mallory", "amount": 100,
	})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestVoteAndClaim_Flow(t *testing.T) {
	env := testServer()

	env.mustPost(t, "/pools", map[string]interface{}{
		"id":     "pool1",
		"name":   "Test Round",
		"start":  baseTime.Unix() + 100,
		"end":    baseTime.Unix() + 1000,
		"admins": []string{"pooladmin"},
		"access": "open",
	})
	env.mustPost(t, "/projects", map[string]interface{}{
		"id": "alpha", "name": "Project Alpha",
		"admins": []string{"alice"}, "beneficiary": "alice-payout", "goal": 1000,
	})
	env.mustPost(t, "/pools/pool1/join", map[string]interface{}{
		"caller": "alice", "project_id": "alpha",
	})

	// Fund the pool with 1000 from a registered source.
	env.mustPost(t, "/sources", map[string]interface{}{
		"id": "src1", "name": "Matching Fund", "authority": "funder",
	})
	env.mustPost(t, "/escrow/deposit", map[string]interface{}{
		"account": "source:src1", "amount": 1000,
	})
	env.mustPost(t, "/pools/pool1/fund", map[string]interface{}{
		"caller": "funder", "source_id": "src1", "amount": 1000, "denomination": "usdc",
	})

	// Claiming before the round ends is rejected.
	res := env.post(t, "/pools/pool1/claim", map[string]interface{}{
		"caller": "alice", "project_id": "alpha",
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected early claim 409, got %d, body: %s", res.Code, res.Body.String())
	}

	// Start the round, refresh the price feed and cast a vote.
	env.clock.Advance(150 * time.Second)
	env.oracle.SetQuote("usdc", 1.0)
	env.mustPost(t, "/escrow/deposit", map[string]interface{}{
		"account": "c1", "amount": 500,
	})
	env.mustPost(t, "/pools/pool1/vote", map[string]interface{}{
		"caller": "c1", "project_id": "alpha", "amount": 200, "denomination": "usdc",
	})

	// Past the end: the sole participant claims the whole pot.
	env.clock.Advance(2000 * time.Second)
	res = env.post(t, "/pools/pool1/claim", map[string]interface{}{
		"caller": "alice", "project_id": "alpha",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected claim 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var claim struct {
		Payout uint64 `json:"payout"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &claim); err != nil {
		t.Fatalf("failed to decode claim response: %v", err)
	}
	if claim.Payout != 1000 {
		t.Fatalf("expected payout 1000, got %d", claim.Payout)
	}

	// Repeat claims are conflicts.
	res = env.post(t, "/pools/pool1/claim", map[string]interface{}{
		"caller": "alice", "project_id": "alpha",
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected repeat claim 409, got %d, body: %s", res.Code, res.Body.String())
	}

	// The project escrow holds the payout plus the vote contribution.
	res = env.get(t, "/escrow/project:alpha")
	if res.Code != http.StatusOK {
		t.Fatalf("expected balance 200, got %d", res.Code)
	}
	var balance struct {
		Balance uint64 `json:"balance"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &balance); err != nil {
		t.Fatalf("failed to decode balance response: %v", err)
	}
	if balance.Balance != 1200 {
		t.Fatalf("expected escrow balance 1200, got %d", balance.Balance)
	}
}

func TestVote_StaleQuote(t *testing.T) {
	env := testServer()

	env.mustPost(t, "/pools", map[string]interface{}{
		"id":     "pool1",
		"name":   "Test Round",
		"start":  baseTime.Unix() + 100,
		"end":    baseTime.Unix() + 1000,
		"admins": []string{"pooladmin"},
		"access": "open",
	})
	env.mustPost(t, "/projects", map[string]interface{}{
		"id": "alpha", "name": "Project Alpha",
		"admins": []string{"alice"}, "beneficiary": "alice-payout", "goal": 1000,
	})
	env.mustPost(t, "/pools/pool1/join", map[string]interface{}{
		"caller": "alice", "project_id": "alpha",
	})
	env.mustPost(t, "/escrow/deposit", map[string]interface{}{
		"account": "c1", "amount": 500,
	})

	// Quotes were published at startup; the round starts past the bound.
	env.clock.Advance(150 * time.Second)
	res := env.post(t, "/pools/pool1/vote", map[string]interface{}{
		"caller": "c1", "project_id": "alpha", "amount": 200, "denomination": "usdc",
	})
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestMilestone_ReconcileAndClose(t *testing.T) {
	env := testServer()

	env.mustPost(t, "/projects", map[string]interface{}{
		"id": "alpha", "name": "Project Alpha",
		"admins": []string{"alice"}, "beneficiary": "alice-payout", "goal": 1000,
	})
	env.mustPost(t, "/projects/alpha/milestones", map[string]interface{}{
		"caller": "alice", "id": "m1", "name": "Prototype", "percentage": 0.25,
	})

	// Close before reconciling is a conflict.
	res := env.post(t, "/projects/alpha/milestones/m1/close", map[string]interface{}{
		"caller": "alice",
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d, body: %s", res.Code, res.Body.String())
	}

	env.mustPost(t, "/projects/alpha/milestones/m1/reconcile", map[string]interface{}{
		"caller": "alice",
	})

	env.clock.Advance(time.Duration(models.ReconcileWindow) * time.Second)
	env.mustPost(t, "/projects/alpha/milestones/m1/close", map[string]interface{}{
		"caller": "alice",
	})

	got, err := env.repo.GetMilestone("alpha", "m1")
	if err != nil {
		t.Fatalf("milestone missing: %v", err)
	}
	if got.Status != models.MilestoneClosed {
		t.Fatalf("expected closed milestone, got %q", got.Status)
	}
}
