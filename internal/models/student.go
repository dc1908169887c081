package models

// Student is a learner billed against the shared fee policy.
type Student struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Class       string `db:"class" json:"class"`
	Contact     string `db:"contact" json:"contact"`
	MotherName  string `db:"mother_name" json:"mother_name"`
	FatherName  string `db:"father_name" json:"father_name"`
	ParentPhone string `db:"parent_number" json:"parent_phone"`
	ParentEmail string `db:"parent_email" json:"parent_email"`
	CreatedDate string `db:"created_date" json:"created_date"`
}

// StudentFilter narrows the student list. Zero values mean "no filter".
type StudentFilter struct {
	Search   string
	Class    string
	Page     int
	PageSize int
}

// Paged reports whether the caller asked for a bounded page.
func (f StudentFilter) Paged() bool {
	return f.PageSize > 0
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
