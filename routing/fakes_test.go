package routing

import (
	"context"
	"database/sql"
	"sync"

	"github.com/uzsupport/murojaat/ai"
	"github.com/uzsupport/murojaat/store"
)

// fakeDriver is an in-memory store.Driver for pipeline tests.
type fakeDriver struct {
	mu sync.Mutex

	sessions     map[string]*store.Session
	departments  []*store.Department
	candidates   []*store.DepartmentCandidate
	profileCount int
	memberships  []*store.AdminMembership

	decisionRecords  map[string]*store.DecisionRecord
	injectionRecords map[string]*store.InjectionRecord

	countErr  error
	searchErr error

	assignCalls int
	searchCalls []*store.SearchDepartmentProfiles
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		sessions:         map[string]*store.Session{},
		decisionRecords:  map[string]*store.DecisionRecord{},
		injectionRecords: map[string]*store.InjectionRecord{},
	}
}

func (f *fakeDriver) GetDB() *sql.DB                    { return nil }
func (f *fakeDriver) Close() error                      { return nil }
func (f *fakeDriver) Migrate(ctx context.Context) error { return nil }

func (f *fakeDriver) UpsertUser(ctx context.Context, upsert *store.UpsertUser) (*store.User, error) {
	return &store.User{UID: upsert.UID, FullName: upsert.FullName}, nil
}

func (f *fakeDriver) GetSessionByUID(ctx context.Context, uid string) (*store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[uid], nil
}

func (f *fakeDriver) FindSessionByUserUID(ctx context.Context, userUID string) (*store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserUID == userUID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeDriver) CreateSession(ctx context.Context, create *store.Session) (*store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[create.UID] = create
	return create, nil
}

func (f *fakeDriver) AssignSessionDepartment(ctx context.Context, sessionUID string, departmentID int32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignCalls++
	session, ok := f.sessions[sessionUID]
	if !ok || session.AssignedDepartmentID != nil {
		return false, nil
	}
	session.AssignedDepartmentID = &departmentID
	return true, nil
}

func (f *fakeDriver) UpsertMessage(ctx context.Context, upsert *store.Message) (*store.Message, error) {
	return upsert, nil
}

func (f *fakeDriver) GetMessageByUID(ctx context.Context, uid string) (*store.Message, error) {
	return nil, nil
}

func (f *fakeDriver) GetDepartmentByID(ctx context.Context, id int32) (*store.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.departments {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeDriver) GetDepartmentByName(ctx context.Context, name string) (*store.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.departments {
		if d.Name == name && d.IsActive {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeDriver) ListDepartments(ctx context.Context, find *store.FindDepartment) ([]*store.Department, error) {
	return f.departments, nil
}

func (f *fakeDriver) UpsertDepartment(ctx context.Context, upsert *store.UpsertDepartment) (*store.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	department := &store.Department{
		ID:          int32(len(f.departments) + 1),
		Name:        upsert.Name,
		Description: upsert.Description,
		Keywords:    upsert.Keywords,
		IsActive:    upsert.IsActive,
	}
	f.departments = append(f.departments, department)
	return department, nil
}

func (f *fakeDriver) UpsertDepartmentProfile(ctx context.Context, upsert *store.DepartmentProfile) (*store.DepartmentProfile, error) {
	return upsert, nil
}

func (f *fakeDriver) CountDepartmentProfiles(ctx context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.profileCount, nil
}

func (f *fakeDriver) SearchDepartmentProfiles(ctx context.Context, search *store.SearchDepartmentProfiles) ([]*store.DepartmentCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, search)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	candidates := f.candidates
	if search.Limit > 0 && len(candidates) > search.Limit {
		candidates = candidates[:search.Limit]
	}
	return candidates, nil
}

func (f *fakeDriver) CreateAdminMembership(ctx context.Context, create *store.AdminMembership) (*store.AdminMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberships = append(f.memberships, create)
	return create, nil
}

func (f *fakeDriver) ListAdminMemberships(ctx context.Context, departmentID int32) ([]*store.AdminMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []*store.AdminMembership{}
	for _, m := range f.memberships {
		if m.DepartmentID == departmentID {
			list = append(list, m)
		}
	}
	return list, nil
}

func (f *fakeDriver) UpsertInjectionRecord(ctx context.Context, upsert *store.InjectionRecord) (*store.InjectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injectionRecords[upsert.MessageUID] = upsert
	return upsert, nil
}

func (f *fakeDriver) UpsertDecisionRecord(ctx context.Context, upsert *store.DecisionRecord) (*store.DecisionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisionRecords[upsert.MessageUID] = upsert
	return upsert, nil
}

func (f *fakeDriver) GetDecisionRecordByMessageUID(ctx context.Context, messageUID string) (*store.DecisionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decisionRecords[messageUID], nil
}

// fakeEmbedder is an in-memory ai.EmbeddingService.
type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeLLM is an in-memory ai.LLMService.
type fakeLLM struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	onChat   func()
}

func (f *fakeLLM) Chat(ctx context.Context, messages []ai.Message, opts *ai.ChatOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.onChat != nil {
		f.onChat()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) Warmup(ctx context.Context) {}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
