package repository

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fee-ledger-api/internal/models"
)

const studentColumns = "s.id, s.name, s.class, s.contact, s.mother_name, s.father_name, s.parent_number, s.parent_email, s.created_date"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db sqlx.ExtContext
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return newStudentRepository(db)
}

func newStudentRepository(db sqlx.ExtContext) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the filter ordered by class then name.
// The total is the number of matches regardless of paging.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Class != "" {
		conditions = append(conditions, "s.class = ?")
		args = append(args, filter.Class)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := likePattern(term)
		columns := []string{"s.name", "s.class", "s.contact", "s.mother_name", "s.father_name", "s.parent_number", "s.parent_email"}
		matches := make([]string, len(columns))
		for i, column := range columns {
			matches[i] = fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, column)
			args = append(args, pattern)
		}
		conditions = append(conditions, "("+strings.Join(matches, " OR ")+")")
	}
	where := "FROM students s WHERE " + strings.Join(conditions, " AND ")

	query := fmt.Sprintf("SELECT %s %s ORDER BY s.class, s.name, s.id", studentColumns, where)
	if filter.Paged() {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.PageSize, (page-1)*filter.PageSize)
	}

	students := []models.Student{}
	if err := sqlx.SelectContext(ctx, r.db, &students, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	if !filter.Paged() {
		return students, len(students), nil
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, r.db.Rebind("SELECT COUNT(*) "+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student; sql.ErrNoRows when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	query := r.db.Rebind("SELECT " + studentColumns + " FROM students s WHERE s.id = ?")
	var student models.Student
	if err := sqlx.GetContext(ctx, r.db, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Exists reports whether a student row with id is present.
func (r *StudentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var found int
	err := sqlx.GetContext(ctx, r.db, &found, r.db.Rebind("SELECT 1 FROM students WHERE id = ?"), id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check student: %w", err)
	}
	return true, nil
}

// Create inserts student and stores the assigned id on it.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	const query = `INSERT INTO students (name, class, contact, mother_name, father_name, parent_number, parent_email, created_date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := sqlx.GetContext(ctx, r.db, &student.ID, r.db.Rebind(query),
		student.Name, student.Class, student.Contact, student.MotherName,
		student.FatherName, student.ParentPhone, student.ParentEmail, student.CreatedDate,
	)
	if err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update replaces every mutable field; sql.ErrNoRows when the id is unknown.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	const query = `UPDATE students SET name = ?, class = ?, contact = ?, mother_name = ?, father_name = ?, parent_number = ?, parent_email = ?
WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		student.Name, student.Class, student.Contact, student.MotherName,
		student.FatherName, student.ParentPhone, student.ParentEmail, student.ID,
	)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return requireAffected(res, "update student")
}

// Delete removes the student row only. Payments are left untouched.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM students WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return requireAffected(res, "delete student")
}

// Balances streams every student with the sum of their payments, ordered by
// class then name. Each range re-runs the query, so the sequence always
// reflects the current rows. The consumer must not issue other queries on the
// same single-connection pool while ranging.
func (r *StudentRepository) Balances(ctx context.Context) iter.Seq2[models.StudentBalance, error] {
	query := `SELECT ` + studentColumns + `, COALESCE(SUM(p.amount), 0) AS paid
FROM students s
LEFT JOIN payments p ON p.student_id = s.id
GROUP BY ` + studentColumns + `
ORDER BY s.class, s.name, s.id`

	return func(yield func(models.StudentBalance, error) bool) {
		rows, err := r.db.QueryxContext(ctx, query)
		if err != nil {
			yield(models.StudentBalance{}, fmt.Errorf("query balances: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var balance models.StudentBalance
			if err := rows.StructScan(&balance); err != nil {
				yield(models.StudentBalance{}, fmt.Errorf("scan balance: %w", err))
				return
			}
			balance.Paid = balance.Paid.Round(2)
			if !yield(balance, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.StudentBalance{}, fmt.Errorf("iterate balances: %w", err))
		}
	}
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
