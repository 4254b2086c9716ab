package employees

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/employees-api/internal/platform/db"
)

// Repository is the storage contract of the employees module.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Ping(ctx context.Context) error
	ListEmployees(ctx context.Context) ([]Employee, error)
	GetEmployee(ctx context.Context, employeeID int64) (Employee, error)
	ListCompanies(ctx context.Context) ([]Company, error)
	ExistingEmployeeIDs(ctx context.Context, ids []int64) ([]int64, error)
	GetOrCreateCompany(ctx context.Context, name string) (Company, error)
	CreateEmployee(ctx context.Context, employee Employee, companyID int64) error
}

const pgUniqueViolation = "23505"

const selectEmployeeSQL = `
	SELECT e.employee_id, e.first_name, e.last_name, e.phone_number,
	       e.salary::text, e.manager_id, e.department_id, c.name
	FROM employees e
	JOIN companies c ON c.id = e.company_id`

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRepository stores companies and employees through pgx.
type PostgresRepository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository builds the postgres repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool, pool: pool}
}

// WithTx runs fn against a transaction bound repository. Calls made on a
// repository that is already inside a transaction reuse it.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PostgresRepository{db: tx})
	})
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return nil
	}
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := r.db.Query(ctx, selectEmployeeSQL+` ORDER BY e.employee_id`)
	if err != nil {
		return nil, fmt.Errorf("employees: list employees: %w", err)
	}
	defer rows.Close()

	employees := []Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("employees: scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (r *PostgresRepository) GetEmployee(ctx context.Context, employeeID int64) (Employee, error) {
	e, err := scanEmployee(r.db.QueryRow(ctx, selectEmployeeSQL+` WHERE e.employee_id = $1`, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, fmt.Errorf("employees: get employee %d: %w", employeeID, err)
	}
	return e, nil
}

func (r *PostgresRepository) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM companies ORDER BY id`)
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

func (r *PostgresRepository) ExistingEmployeeIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT employee_id FROM employees WHERE employee_id = ANY($1::bigint[])`, ids)
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

// GetOrCreateCompany returns the company named name, inserting it first if
// needed. A concurrent insert of the same name is picked up by the second
// lookup.
func (r *PostgresRepository) GetOrCreateCompany(ctx context.Context, name string) (Company, error) {
	const lookup = `SELECT id, name FROM companies WHERE name = $1`
	var c Company
	err := r.db.QueryRow(ctx, lookup, name).Scan(&c.ID, &c.Name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Company{}, fmt.Errorf("employees: lookup company: %w", err)
	}

	err = r.db.QueryRow(ctx, `INSERT INTO companies (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id, name`, name).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		err = r.db.QueryRow(ctx, lookup, name).Scan(&c.ID, &c.Name)
	}
	if err != nil {
		return Company{}, fmt.Errorf("employees: create company: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) CreateEmployee(ctx context.Context, e Employee, companyID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO employees (employee_id, first_name, last_name, phone_number, salary, manager_id, department_id, company_id)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8)`,
		e.EmployeeID, e.FirstName, e.LastName, e.PhoneNumber, e.Salary.StringFixed(2), e.ManagerID, e.DepartmentID, companyID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: employee_id %d", ErrDuplicate, e.EmployeeID)
		}
		return fmt.Errorf("employees: create employee %d: %w", e.EmployeeID, err)
	}
	return nil
}

func scanEmployee(row pgx.Row) (Employee, error) {
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
