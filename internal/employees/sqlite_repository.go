package employees

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/odyssey-erp/employees-api/internal/platform/db"
)

// sqliteMaxParams keeps IN lists well below the sqlite variable limit.
const sqliteMaxParams = 500

const selectEmployeeSQLite = `
	SELECT e.employee_id, e.first_name, e.last_name, e.phone_number,
	       e.salary, e.manager_id, e.department_id, c.name
	FROM employees e
	JOIN companies c ON c.id = e.company_id`

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository stores companies and employees in an embedded sqlite
// database. Salaries are kept as fixed two-place decimal text.
type SQLiteRepository struct {
	db    sqlExecer
	sqldb *sql.DB
}

// NewSQLiteRepository builds the repository on an open, migrated handle.
func NewSQLiteRepository(sqldb *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: sqldb, sqldb: sqldb}
}

func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.sqldb == nil {
		return fn(ctx, r)
	}
	return db.WithSQLTx(ctx, r.sqldb, func(tx *sql.Tx) error {
		return fn(ctx, &SQLiteRepository{db: tx})
	})
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if r.sqldb == nil {
		return nil
	}
	return r.sqldb.PingContext(ctx)
}

func (r *SQLiteRepository) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := r.db.QueryContext(ctx, selectEmployeeSQLite+` ORDER BY e.employee_id`)
	if err != nil {
		return nil, fmt.Errorf("employees: list employees: %w", err)
	}
	defer rows.Close()

	employees := []Employee{}
	for rows.Next() {
		e, err := scanSQLiteEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("employees: scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (r *SQLiteRepository) GetEmployee(ctx context.Context, employeeID int64) (Employee, error) {
	e, err := scanSQLiteEmployee(r.db.QueryRowContext(ctx, selectEmployeeSQLite+` WHERE e.employee_id = ?`, employeeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, fmt.Errorf("employees: get employee %d: %w", employeeID, err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("employees: list companies: %w", err)
	}
	defer rows.Close()

	companies := []Company{}
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("employees: scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (r *SQLiteRepository) ExistingEmployeeIDs(ctx context.Context, ids []int64) ([]int64, error) {
	var found []int64
	for start := 0; start < len(ids); start += sqliteMaxParams {
		end := min(start+sqliteMaxParams, len(ids))
		chunk, err := r.existingChunk(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		found = append(found, chunk...)
	}
	return found, nil
}

func (r *SQLiteRepository) existingChunk(ctx context.Context, ids []int64) ([]int64, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := r.db.QueryContext(ctx, `SELECT employee_id FROM employees WHERE employee_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("employees: existing ids: %w", err)
	}
	defer rows.Close()

	var found []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("employees: scan id: %w", err)
		}
		found = append(found, id)
	}
	return found, rows.Err()
}

func (r *SQLiteRepository) GetOrCreateCompany(ctx context.Context, name string) (Company, error) {
	const lookup = `SELECT id, name FROM companies WHERE name = ?`
	var c Company
	err := r.db.QueryRowContext(ctx, lookup, name).Scan(&c.ID, &c.Name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Company{}, fmt.Errorf("employees: lookup company: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `INSERT INTO companies (name) VALUES (?) ON CONFLICT (name) DO NOTHING RETURNING id, name`, name).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.db.QueryRowContext(ctx, lookup, name).Scan(&c.ID, &c.Name)
	}
	if err != nil {
		return Company{}, fmt.Errorf("employees: create company: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) CreateEmployee(ctx context.Context, e Employee, companyID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO employees (employee_id, first_name, last_name, phone_number, salary, manager_id, department_id, company_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EmployeeID, e.FirstName, e.LastName, e.PhoneNumber, e.Salary.StringFixed(2), e.ManagerID, e.DepartmentID, companyID,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return fmt.Errorf("%w: employee_id %d", ErrDuplicate, e.EmployeeID)
		}
		return fmt.Errorf("employees: create employee %d: %w", e.EmployeeID, err)
	}
	return nil
}

// isSQLiteUnique matches unique constraint failures whether or not the
// connection reports extended result codes.
func isSQLiteUnique(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEmployee(row rowScanner) (Employee, error) {
	var (
		e      Employee
		salary string
	)
	if err := row.Scan(&e.EmployeeID, &e.FirstName, &e.LastName, &e.PhoneNumber, &salary, &e.ManagerID, &e.DepartmentID, &e.CompanyName); err != nil {
		return Employee{}, err
	}
	d, err := decimal.NewFromString(salary)
	if err != nil {
		return Employee{}, fmt.Errorf("salary %q: %w", salary, err)
	}
	e.Salary = d
	return e, nil
}
