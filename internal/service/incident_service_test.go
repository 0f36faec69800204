package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// ------------------------
// Mock repositories
// ------------------------

var mockBaseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// mockIncidentRepo reproduces the store contract in memory: every mutation
// is a single conditional step under one mutex, mirroring the atomic
// UPDATE ... WHERE guards of the real repository.
type mockIncidentRepo struct {
	mu   sync.Mutex
	seq  int
	data map[string]*domain.Incident
}

func newMockIncidentRepo() *mockIncidentRepo {
	return &mockIncidentRepo{data: map[string]*domain.Incident{}}
}

func (m *mockIncidentRepo) nextTimeLocked() time.Time {
	m.seq++
	return mockBaseTime.Add(time.Duration(m.seq) * time.Millisecond)
}

func (m *mockIncidentRepo) Create(_ context.Context, incident *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nextTimeLocked()
	incident.ID = fmt.Sprintf("inc-%d", m.seq)
	incident.CreatedAt = now
	incident.UpdatedAt = now
	clone := *incident
	m.data[incident.ID] = &clone
	return nil
}

func (m *mockIncidentRepo) GetByID(_ context.Context, id string) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.data[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (m *mockIncidentRepo) AssignIfUnassigned(_ context.Context, id, assigneeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.data[id]
	if !ok {
		return false, nil
	}
	if stored.AssignedTo != nil {
		return false, nil
	}
	stored.AssignedTo = &assigneeID
	stored.UpdatedAt = m.nextTimeLocked()
	return true, nil
}

func (m *mockIncidentRepo) UpdateStatusCAS(_ context.Context, id string, status domain.IncidentStatus, expectedUpdatedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.data[id]
	if !ok {
		return false, nil
	}
	if !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return false, nil
	}
	stored.Status = status
	if status == domain.IncidentStatusResolved {
		stored.VisibleToReporter = false
		stored.VisibleToSupport = false
	}
	stored.UpdatedAt = m.nextTimeLocked()
	return true, nil
}

func (m *mockIncidentRepo) List(_ context.Context, filter repository.IncidentFilter) ([]domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Incident
	for _, stored := range m.data {
		if !matchesFilter(stored, filter) {
			continue
		}
		result = append(result, *stored)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *mockIncidentRepo) Stats(_ context.Context, filter repository.IncidentFilter) (repository.IncidentStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats repository.IncidentStats
	for _, stored := range m.data {
		if !matchesFilter(stored, filter) {
			continue
		}
		stats.Total++
		if stored.Severity == domain.SeverityCritical {
			stats.Critical++
		}
		if stored.Status == domain.IncidentStatusOpen {
			stats.Open++
		}
		if stored.Status == domain.IncidentStatusResolved {
			stats.Resolved++
		}
	}
	return stats, nil
}

func matchesFilter(incident *domain.Incident, filter repository.IncidentFilter) bool {
	if filter.CreatedBy != nil && incident.CreatedBy != *filter.CreatedBy {
		return false
	}
	if filter.AssignedTo != nil && (incident.AssignedTo == nil || *incident.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if filter.VisibleToReporter != nil && incident.VisibleToReporter != *filter.VisibleToReporter {
		return false
	}
	if filter.VisibleToSupport != nil && incident.VisibleToSupport != *filter.VisibleToSupport {
		return false
	}
	if filter.Status != nil && incident.Status != *filter.Status {
		return false
	}
	if filter.Severity != nil && incident.Severity != *filter.Severity {
		return false
	}
	return true
}

type mockCommentRepo struct {
	mu   sync.Mutex
	seq  int
	data []domain.Comment
}

func (m *mockCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	comment.ID = fmt.Sprintf("cmt-%d", m.seq)
	comment.CreatedAt = mockBaseTime.Add(time.Duration(m.seq) * time.Second)
	m.data = append(m.data, *comment)
	return nil
}

func (m *mockCommentRepo) ListByIncident(_ context.Context, incidentID string) ([]domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Comment
	for _, comment := range m.data {
		if comment.IncidentID == incidentID {
			result = append(result, comment)
		}
	}
	// Newest first, the display order.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

type mockUserRepo struct {
	data map[string]*domain.User
}

func (m *mockUserRepo) Create(_ context.Context, user *domain.User) error {
	m.data[user.ID] = user
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := m.data[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.data[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := m.data[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range m.data {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockUserRepo) ListSupport(_ context.Context) ([]domain.User, error) {
	var result []domain.User
	for _, user := range m.data {
		if user.IsSupport && user.Active {
			result = append(result, *user)
		}
	}
	return result, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

// ------------------------
// Fixtures
// ------------------------

var (
	adminActor    = domain.Actor{ID: "admin-1", IsAdmin: true}
	supportActor  = domain.Actor{ID: "support-1", IsSupport: true}
	support2Actor = domain.Actor{ID: "support-2", IsSupport: true}
	reporterActor = domain.Actor{ID: "reporter-1"}
)

type engineFixture struct {
	engine     *service.IncidentService
	incidents  *mockIncidentRepo
	comments   *mockCommentRepo
	users      *mockUserRepo
	dispatcher *recordingDispatcher
}

func newEngineFixture() *engineFixture {
	incidents := newMockIncidentRepo()
	comments := &mockCommentRepo{}
	users := &mockUserRepo{data: map[string]*domain.User{
		"admin-1":    {ID: "admin-1", Name: "Ada", Email: "ada@example.com", IsAdmin: true, Active: true},
		"support-1":  {ID: "support-1", Name: "Sam", Email: "sam@example.com", IsSupport: true, Active: true},
		"support-2":  {ID: "support-2", Name: "Sue", Email: "sue@example.com", IsSupport: true, Active: true},
		"reporter-1": {ID: "reporter-1", Name: "Rae", Email: "rae@example.com", Active: true},
		"reporter-2": {ID: "reporter-2", Name: "Rob", Email: "rob@example.com", Active: true},
	}}
	dispatcher := &recordingDispatcher{}

	engine := service.NewIncidentService(service.IncidentDependencies{
		IncidentRepo: incidents,
		CommentRepo:  comments,
		UserRepo:     users,
		Dispatcher:   dispatcher,
	})
	return &engineFixture{
		engine:     engine,
		incidents:  incidents,
		comments:   comments,
		users:      users,
		dispatcher: dispatcher,
	}
}

func (f *engineFixture) createIncident(t *testing.T, actor domain.Actor, severity domain.IncidentSeverity) *domain.Incident {
	t.Helper()
	incident, err := f.engine.CreateIncident(context.Background(), actor, service.IncidentCreateInput{
		Title:       "database down",
		Description: "primary is unreachable",
		Severity:    severity,
	})
	require.NoError(t, err)
	return incident
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

// ------------------------
// Create
// ------------------------

func TestCreateIncidentInitialState(t *testing.T) {
	f := newEngineFixture()

	incident := f.createIncident(t, reporterActor, domain.SeverityHigh)

	assert.Equal(t, domain.IncidentStatusOpen, incident.Status)
	assert.Equal(t, domain.SeverityHigh, incident.Severity)
	assert.Equal(t, "reporter-1", incident.CreatedBy)
	assert.Nil(t, incident.AssignedTo)
	assert.True(t, incident.VisibleToReporter)
	assert.True(t, incident.VisibleToSupport)
	assert.Len(t, f.dispatcher.ofType(events.EventIncidentCreated), 1)
}

func TestCreateIncidentDefaultsSeverityToLow(t *testing.T) {
	f := newEngineFixture()

	incident := f.createIncident(t, reporterActor, "")

	assert.Equal(t, domain.SeverityLow, incident.Severity)
}

func TestCreateIncidentValidation(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.CreateIncident(context.Background(), reporterActor, service.IncidentCreateInput{Title: "   "})
	assertCode(t, err, "INVALID_ARGUMENT")

	_, err = f.engine.CreateIncident(context.Background(), reporterActor, service.IncidentCreateInput{
		Title:    "bad severity",
		Severity: "EXTREME",
	})
	assertCode(t, err, "INVALID_ARGUMENT")
}

// ------------------------
// Assign
// ------------------------

func TestAssignLocksOnFirstWrite(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityHigh)

	assigned, err := f.engine.Assign(context.Background(), adminActor, incident.ID, "support-1")
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "support-1", *assigned.AssignedTo)

	// Second assign with a different identity: accepted, silently dropped.
	reassigned, err := f.engine.Assign(context.Background(), adminActor, incident.ID, "support-2")
	require.NoError(t, err)
	require.NotNil(t, reassigned.AssignedTo)
	assert.Equal(t, "support-1", *reassigned.AssignedTo)

	// Only the first write produced an event.
	assert.Len(t, f.dispatcher.ofType(events.EventIncidentAssigned), 1)
}

func TestAssignRequiresAdministrator(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityMedium)

	// The reporter can see their incident but may not assign it.
	_, err := f.engine.Assign(context.Background(), reporterActor, incident.ID, "support-1")
	assertCode(t, err, "UNAUTHORIZED")

	// A support actor without the assignment cannot even see it.
	_, err = f.engine.Assign(context.Background(), supportActor, incident.ID, "support-1")
	assertCode(t, err, "NOT_FOUND")
}

func TestAssignRejectsNonSupportIdentity(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityMedium)

	_, err := f.engine.Assign(context.Background(), adminActor, incident.ID, "reporter-2")
	assertCode(t, err, "INVALID_ARGUMENT")

	_, err = f.engine.Assign(context.Background(), adminActor, incident.ID, "nobody")
	assertCode(t, err, "INVALID_ARGUMENT")
}

func TestConcurrentAssignExactlyOneWins(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityCritical)

	const attempts = 2
	results := make([]*domain.Incident, attempts)
	errs := make([]error, attempts)
	assignees := []string{"support-1", "support-2"}

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.engine.Assign(context.Background(), adminActor, incident.ID, assignees[i])
		}(i)
	}
	wg.Wait()

	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].AssignedTo)
	}
	// Both callers observe the same winner, and exactly one write happened.
	assert.Equal(t, *results[0].AssignedTo, *results[1].AssignedTo)
	assert.Len(t, f.dispatcher.ofType(events.EventIncidentAssigned), 1)

	final, err := f.engine.GetIncident(context.Background(), adminActor, incident.ID)
	require.NoError(t, err)
	require.NotNil(t, final.AssignedTo)
	assert.Contains(t, assignees, *final.AssignedTo)
}

// ------------------------
// Status and close
// ------------------------

func TestSetStatusBySupportKeepsVisibility(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityHigh)
	_, err := f.engine.Assign(context.Background(), adminActor, incident.ID, "support-1")
	require.NoError(t, err)

	updated, err := f.engine.SetStatus(context.Background(), supportActor, incident.ID, domain.IncidentStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusInProgress, updated.Status)
	assert.True(t, updated.VisibleToReporter)
	assert.True(t, updated.VisibleToSupport)
}

func TestResolveHidesFromBothRoles(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityHigh)

	updated, err := f.engine.SetStatus(context.Background(), adminActor, incident.ID, domain.IncidentStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResolved, updated.Status)
	assert.False(t, updated.VisibleToReporter)
	assert.False(t, updated.VisibleToSupport)
}

func TestStatusReachableInAnyOrderWithoutRevealing(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityLow)

	// RESOLVED hides; reopening afterwards must not flip visibility back.
	_, err := f.engine.SetStatus(context.Background(), adminActor, incident.ID, domain.IncidentStatusResolved)
	require.NoError(t, err)
	reopened, err := f.engine.SetStatus(context.Background(), adminActor, incident.ID, domain.IncidentStatusOpen)
	require.NoError(t, err)

	assert.Equal(t, domain.IncidentStatusOpen, reopened.Status)
	assert.False(t, reopened.VisibleToReporter)
	assert.False(t, reopened.VisibleToSupport)
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityLow)

	_, err := f.engine.SetStatus(context.Background(), adminActor, incident.ID, "ARCHIVED")
	assertCode(t, err, "INVALID_ARGUMENT")
}

func TestSetStatusUnauthorizedForReporter(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityLow)

	_, err := f.engine.SetStatus(context.Background(), reporterActor, incident.ID, domain.IncidentStatusInProgress)
	assertCode(t, err, "UNAUTHORIZED")
}

func TestCloseIsIdempotentForAdmin(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityHigh)

	closed, err := f.engine.Close(context.Background(), adminActor, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResolved, closed.Status)
	assert.False(t, closed.VisibleToReporter)
	assert.False(t, closed.VisibleToSupport)

	again, err := f.engine.Close(context.Background(), adminActor, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResolved, again.Status)

	// The second close changed nothing and emitted nothing.
	assert.Len(t, f.dispatcher.ofType(events.EventIncidentStatusChanged), 1)
}

func TestCloseBySupportEndsTheirAccess(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityHigh)
	_, err := f.engine.Assign(context.Background(), adminActor, incident.ID, "support-1")
	require.NoError(t, err)

	closed, err := f.engine.Close(context.Background(), supportActor, incident.ID)
	require.NoError(t, err)
	assert.False(t, closed.VisibleToSupport)

	// Hidden-from-support now, even though still assigned to them.
	_, err = f.engine.GetIncident(context.Background(), supportActor, incident.ID)
	assertCode(t, err, "NOT_FOUND")
}

func TestStatusCASRetriesOnConcurrentBump(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityHigh)

	flaky := &contentionIncidentRepo{mockIncidentRepo: f.incidents, failures: 1}
	engine := service.NewIncidentService(service.IncidentDependencies{
		IncidentRepo: flaky,
		CommentRepo:  f.comments,
		UserRepo:     f.users,
		Dispatcher:   f.dispatcher,
	})

	updated, err := engine.SetStatus(context.Background(), adminActor, incident.ID, domain.IncidentStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusInProgress, updated.Status)
	assert.Equal(t, 2, flaky.calls)
}

func TestStatusCASGivesUpAsConflict(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityHigh)

	contended := &contentionIncidentRepo{mockIncidentRepo: f.incidents, failures: 100}
	engine := service.NewIncidentService(service.IncidentDependencies{
		IncidentRepo: contended,
		CommentRepo:  f.comments,
		UserRepo:     f.users,
		Dispatcher:   f.dispatcher,
	})

	_, err := engine.SetStatus(context.Background(), adminActor, incident.ID, domain.IncidentStatusInProgress)
	assertCode(t, err, "CONFLICT")
}

// contentionIncidentRepo simulates another writer touching the row between
// the engine's read and its CAS write.
type contentionIncidentRepo struct {
	*mockIncidentRepo
	failures int
	calls    int
}

func (c *contentionIncidentRepo) UpdateStatusCAS(ctx context.Context, id string, status domain.IncidentStatus, expectedUpdatedAt time.Time) (bool, error) {
	c.calls++
	if c.calls <= c.failures {
		c.mu.Lock()
		if stored, ok := c.data[id]; ok {
			stored.UpdatedAt = c.nextTimeLocked()
		}
		c.mu.Unlock()
	}
	return c.mockIncidentRepo.UpdateStatusCAS(ctx, id, status, expectedUpdatedAt)
}

// ------------------------
// Lookup and listing
// ------------------------

func TestGetIncidentHidesExistenceUniformly(t *testing.T) {
	f := newEngineFixture()
	incident := f.createIncident(t, reporterActor, domain.SeverityHigh)
	_, err := f.engine.Close(context.Background(), adminActor, incident.ID)
	require.NoError(t, err)

	// A hidden-but-owned incident and a nonexistent id look identical.
	_, errHidden := f.engine.GetIncident(context.Background(), reporterActor, incident.ID)
	_, errMissing := f.engine.GetIncident(context.Background(), reporterActor, "inc-999")

	assertCode(t, errHidden, "NOT_FOUND")
	assertCode(t, errMissing, "NOT_FOUND")
}

func TestListScopesPerRole(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	mine := f.createIncident(t, reporterActor, domain.SeverityCritical)
	other, err := f.engine.CreateIncident(ctx, domain.Actor{ID: "reporter-2"}, service.IncidentCreateInput{Title: "vpn flapping"})
	require.NoError(t, err)
	_, err = f.engine.Assign(ctx, adminActor, other.ID, "support-1")
	require.NoError(t, err)

	reporterList, err := f.engine.ListIncidents(ctx, reporterActor, service.IncidentListFilter{})
	require.NoError(t, err)
	require.Len(t, reporterList, 1)
	assert.Equal(t, mine.ID, reporterList[0].ID)

	supportList, err := f.engine.ListIncidents(ctx, supportActor, service.IncidentListFilter{})
	require.NoError(t, err)
	require.Len(t, supportList, 1)
	assert.Equal(t, other.ID, supportList[0].ID)

	support2List, err := f.engine.ListIncidents(ctx, support2Actor, service.IncidentListFilter{})
	require.NoError(t, err)
	assert.Empty(t, support2List)

	adminList, err := f.engine.ListIncidents(ctx, adminActor, service.IncidentListFilter{})
	require.NoError(t, err)
	assert.Len(t, adminList, 2)
}

func TestReporterListingExcludesHiddenOwnIncidents(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	visible := f.createIncident(t, reporterActor, domain.SeverityHigh)
	hidden := f.createIncident(t, reporterActor, domain.SeverityHigh)
	_, err := f.engine.Close(ctx, adminActor, hidden.ID)
	require.NoError(t, err)

	listing, err := f.engine.ListIncidents(ctx, reporterActor, service.IncidentListFilter{})
	require.NoError(t, err)
	require.Len(t, listing, 1)
	assert.Equal(t, visible.ID, listing[0].ID)
}

func TestAdminListRefinements(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	f.createIncident(t, reporterActor, domain.SeverityCritical)
	low := f.createIncident(t, reporterActor, domain.SeverityLow)
	_, err := f.engine.SetStatus(ctx, adminActor, low.ID, domain.IncidentStatusInProgress)
	require.NoError(t, err)

	statusOpen := domain.IncidentStatusOpen
	severityCritical := domain.SeverityCritical

	byStatus, err := f.engine.ListIncidents(ctx, adminActor, service.IncidentListFilter{Status: &statusOpen})
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	byBoth, err := f.engine.ListIncidents(ctx, adminActor, service.IncidentListFilter{Status: &statusOpen, Severity: &severityCritical})
	require.NoError(t, err)
	assert.Len(t, byBoth, 1)

	badStatus := domain.IncidentStatus("LIMBO")
	_, err = f.engine.ListIncidents(ctx, adminActor, service.IncidentListFilter{Status: &badStatus})
	assertCode(t, err, "INVALID_ARGUMENT")

	// Non-admins do not get refinements; the scope alone decides.
	reporterList, err := f.engine.ListIncidents(ctx, reporterActor, service.IncidentListFilter{Status: &badStatus})
	require.NoError(t, err)
	assert.Len(t, reporterList, 2)
}

// ------------------------
// Comments
// ------------------------

func TestCommentsKeepCreationOrder(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	incident := f.createIncident(t, reporterActor, domain.SeverityMedium)

	first, err := f.engine.AddComment(ctx, reporterActor, incident.ID, "first report")
	require.NoError(t, err)
	second, err := f.engine.AddComment(ctx, reporterActor, incident.ID, "more detail")
	require.NoError(t, err)
	require.True(t, first.CreatedAt.Before(second.CreatedAt))

	listing, err := f.engine.ListComments(ctx, reporterActor, incident.ID)
	require.NoError(t, err)
	require.Len(t, listing, 2)

	// Display order is newest first; creation order stays intact underneath.
	assert.Equal(t, second.ID, listing[0].ID)
	assert.Equal(t, first.ID, listing[1].ID)
	assert.True(t, listing[1].CreatedAt.Before(listing[0].CreatedAt))
}

func TestAddCommentRequiresAccess(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	incident := f.createIncident(t, reporterActor, domain.SeverityMedium)

	_, err := f.engine.AddComment(ctx, domain.Actor{ID: "reporter-2"}, incident.ID, "drive-by")
	assertCode(t, err, "NOT_FOUND")

	_, err = f.engine.AddComment(ctx, supportActor, incident.ID, "not mine yet")
	assertCode(t, err, "NOT_FOUND")

	_, err = f.engine.AddComment(ctx, reporterActor, incident.ID, "   ")
	assertCode(t, err, "INVALID_ARGUMENT")
}

// ------------------------
// End-to-end lifecycle
// ------------------------

func TestLifecycleScenario(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	incident := f.createIncident(t, reporterActor, domain.SeverityHigh)
	assert.Equal(t, domain.IncidentStatusOpen, incident.Status)
	assert.Nil(t, incident.AssignedTo)
	assert.True(t, incident.VisibleToReporter)
	assert.True(t, incident.VisibleToSupport)

	assigned, err := f.engine.Assign(ctx, adminActor, incident.ID, "support-1")
	require.NoError(t, err)
	assert.Equal(t, "support-1", *assigned.AssignedTo)

	noop, err := f.engine.Assign(ctx, adminActor, incident.ID, "support-2")
	require.NoError(t, err)
	assert.Equal(t, "support-1", *noop.AssignedTo)

	inProgress, err := f.engine.SetStatus(ctx, supportActor, incident.ID, domain.IncidentStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusInProgress, inProgress.Status)
	assert.True(t, inProgress.VisibleToReporter)
	assert.True(t, inProgress.VisibleToSupport)

	closed, err := f.engine.Close(ctx, supportActor, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResolved, closed.Status)
	assert.False(t, closed.VisibleToReporter)
	assert.False(t, closed.VisibleToSupport)

	listing, err := f.engine.ListIncidents(ctx, reporterActor, service.IncidentListFilter{})
	require.NoError(t, err)
	assert.Empty(t, listing)
}
