package store

// Department is a support team with a semantic profile used for routing.
// Read-only to the pipeline; written by the offline ingestion job.
type Department struct {
	ID          int32
	Name        string
	Description string
	Keywords    string
	IsActive    bool
	CreatedTs   int64
	UpdatedTs   int64
}

// FindDepartment filters department listings.
type FindDepartment struct {
	IsActive *bool
}

// UpsertDepartment creates or refreshes a department keyed by name.
type UpsertDepartment struct {
	Name        string
	Description string
	Keywords    string
	IsActive    bool
}

// DepartmentProfile is one point of the department vector index: the
// embedding of a department's name + description + keywords for one
// language. Keyed by (department_id, lang) so re-ingestion upserts.
type DepartmentProfile struct {
	ID           int32
	DepartmentID int32
	Lang         string // "uz", "ru"
	Name         string
	Description  string
	Keywords     string
	Embedding    []float32
	Model        string
	UpdatedTs    int64
}

// SearchDepartmentProfiles is a nearest-neighbor query over the index.
type SearchDepartmentProfiles struct {
	Vector []float32
	Lang   string // optional language filter; empty matches all
	Limit  int
}

// DepartmentCandidate is one vector search hit.
type DepartmentCandidate struct {
	DepartmentID int32   `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Score        float64 `json:"score"`
}
