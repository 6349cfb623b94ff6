// Package store provides database access to all raw objects.
package store

import (
	"context"
	"database/sql"

	"github.com/uzsupport/murojaat/internal/profile"
)

// Driver is an interface for database drivers.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// User
	UpsertUser(ctx context.Context, upsert *UpsertUser) (*User, error)

	// Session
	GetSessionByUID(ctx context.Context, uid string) (*Session, error)
	FindSessionByUserUID(ctx context.Context, userUID string) (*Session, error)
	CreateSession(ctx context.Context, create *Session) (*Session, error)
	// AssignSessionDepartment sets assigned_department_id from NULL to the
	// given department with compare-and-set semantics. Returns false when
	// the session was already assigned (lost race), without error.
	AssignSessionDepartment(ctx context.Context, sessionUID string, departmentID int32) (bool, error)

	// Message
	UpsertMessage(ctx context.Context, upsert *Message) (*Message, error)
	GetMessageByUID(ctx context.Context, uid string) (*Message, error)

	// Department catalog (read-only to the pipeline)
	GetDepartmentByID(ctx context.Context, id int32) (*Department, error)
	GetDepartmentByName(ctx context.Context, name string) (*Department, error)
	ListDepartments(ctx context.Context, find *FindDepartment) ([]*Department, error)
	UpsertDepartment(ctx context.Context, upsert *UpsertDepartment) (*Department, error)

	// Department vector index
	UpsertDepartmentProfile(ctx context.Context, upsert *DepartmentProfile) (*DepartmentProfile, error)
	CountDepartmentProfiles(ctx context.Context) (int, error)
	SearchDepartmentProfiles(ctx context.Context, search *SearchDepartmentProfiles) ([]*DepartmentCandidate, error)

	// Admin memberships (read-only to the dispatcher)
	CreateAdminMembership(ctx context.Context, create *AdminMembership) (*AdminMembership, error)
	ListAdminMemberships(ctx context.Context, departmentID int32) ([]*AdminMembership, error)

	// Audit records (upsert keyed by message UID)
	UpsertInjectionRecord(ctx context.Context, upsert *InjectionRecord) (*InjectionRecord, error)
	UpsertDecisionRecord(ctx context.Context, upsert *DecisionRecord) (*DecisionRecord, error)
	GetDecisionRecordByMessageUID(ctx context.Context, messageUID string) (*DecisionRecord, error)
}

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) UpsertUser(ctx context.Context, upsert *UpsertUser) (*User, error) {
	return s.driver.UpsertUser(ctx, upsert)
}

func (s *Store) GetSessionByUID(ctx context.Context, uid string) (*Session, error) {
	return s.driver.GetSessionByUID(ctx, uid)
}

func (s *Store) FindSessionByUserUID(ctx context.Context, userUID string) (*Session, error) {
	return s.driver.FindSessionByUserUID(ctx, userUID)
}

func (s *Store) CreateSession(ctx context.Context, create *Session) (*Session, error) {
	return s.driver.CreateSession(ctx, create)
}

func (s *Store) AssignSessionDepartment(ctx context.Context, sessionUID string, departmentID int32) (bool, error) {
	return s.driver.AssignSessionDepartment(ctx, sessionUID, departmentID)
}

func (s *Store) UpsertMessage(ctx context.Context, upsert *Message) (*Message, error) {
	return s.driver.UpsertMessage(ctx, upsert)
}

func (s *Store) GetMessageByUID(ctx context.Context, uid string) (*Message, error) {
	return s.driver.GetMessageByUID(ctx, uid)
}

func (s *Store) GetDepartmentByID(ctx context.Context, id int32) (*Department, error) {
	return s.driver.GetDepartmentByID(ctx, id)
}

func (s *Store) GetDepartmentByName(ctx context.Context, name string) (*Department, error) {
	return s.driver.GetDepartmentByName(ctx, name)
}

func (s *Store) ListDepartments(ctx context.Context, find *FindDepartment) ([]*Department, error) {
	return s.driver.ListDepartments(ctx, find)
}

func (s *Store) UpsertDepartment(ctx context.Context, upsert *UpsertDepartment) (*Department, error) {
	return s.driver.UpsertDepartment(ctx, upsert)
}

func (s *Store) UpsertDepartmentProfile(ctx context.Context, upsert *DepartmentProfile) (*DepartmentProfile, error) {
	return s.driver.UpsertDepartmentProfile(ctx, upsert)
}

func (s *Store) CountDepartmentProfiles(ctx context.Context) (int, error) {
	return s.driver.CountDepartmentProfiles(ctx)
}

func (s *Store) SearchDepartmentProfiles(ctx context.Context, search *SearchDepartmentProfiles) ([]*DepartmentCandidate, error) {
	return s.driver.SearchDepartmentProfiles(ctx, search)
}

func (s *Store) CreateAdminMembership(ctx context.Context, create *AdminMembership) (*AdminMembership, error) {
	return s.driver.CreateAdminMembership(ctx, create)
}

func (s *Store) ListAdminMemberships(ctx context.Context, departmentID int32) ([]*AdminMembership, error) {
	return s.driver.ListAdminMemberships(ctx, departmentID)
}

func (s *Store) UpsertInjectionRecord(ctx context.Context, upsert *InjectionRecord) (*InjectionRecord, error) {
	return s.driver.UpsertInjectionRecord(ctx, upsert)
}

func (s *Store) UpsertDecisionRecord(ctx context.Context, upsert *DecisionRecord) (*DecisionRecord, error) {
	return s.driver.UpsertDecisionRecord(ctx, upsert)
}

func (s *Store) GetDecisionRecordByMessageUID(ctx context.Context, messageUID string) (*DecisionRecord, error) {
	return s.driver.GetDecisionRecordByMessageUID(ctx, messageUID)
}
