package store

// Session is the conversational context owning a user and an optional
// department assignment. assigned_department_id transitions NULL to a
// value at most once, through Driver.AssignSessionDepartment only.
type Session struct {
	UID                  string
	UserUID              string
	AssignedDepartmentID *int32
	CreatedTs            int64
	UpdatedTs            int64
}

// IsAssigned reports whether the session already has a routed department.
func (s *Session) IsAssigned() bool {
	return s.AssignedDepartmentID != nil
}
