package employees

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/employees-api/internal/platform/httpx"
)

var (
	// ErrNotFound is returned when no employee carries the requested employee_id.
	ErrNotFound = fmt.Errorf("employees: %w", httpx.ErrNotFound)
	// ErrDuplicate is returned when an insert hits the employee_id unique constraint.
	ErrDuplicate = fmt.Errorf("employees: %w", httpx.ErrDuplicate)
)

// Company groups employees under a unique name.
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Employee is a worker record keyed by its business employee_id. CompanyName
// is resolved through the company reference on reads and drives
// get-or-create on writes.
type Employee struct {
	EmployeeID   int64           `json:"employee_id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	PhoneNumber  string          `json:"phone_number"`
	Salary       decimal.Decimal `json:"salary"`
	ManagerID    int64           `json:"manager_id"`
	DepartmentID int64           `json:"department_id"`
	CompanyName  string          `json:"company_name"`
}

// ImportResult summarises a persisted upload.
type ImportResult struct {
	Created   int
	Companies int
}

// Column maps an uploaded header onto an employee field.
type Column struct {
	Header string
	Field  string
}

// Columns lists the accepted upload headers in field order.
var Columns = []Column{
	{Header: "EMPLOYEE_ID", Field: "employee_id"},
	{Header: "FIRST_NAME", Field: "first_name"},
	{Header: "LAST_NAME", Field: "last_name"},
	{Header: "PHONE_NUMBER", Field: "phone_number"},
	{Header: "COMPANY_NAME", Field: "company_name"},
	{Header: "SALARY", Field: "salary"},
	{Header: "MANAGER_ID", Field: "manager_id"},
	{Header: "DEPARTMENT_ID", Field: "department_id"},
}

// renameColumns rekeys an uploaded record by field name. Unknown headers
// are dropped.
func renameColumns(record map[string]string) map[string]string {
	out := make(map[string]string, len(Columns))
	for _, col := range Columns {
		if v, ok := record[col.Header]; ok {
			out[col.Field] = v
		}
	}
	return out
}

// FieldErrors holds validation messages per field name.
type FieldErrors map[string][]string

func (fe FieldErrors) add(field, message string) {
	fe[field] = append(fe[field], message)
}

// RowError reports the failures of one uploaded data row (1-based).
type RowError struct {
	Row    int         `json:"row"`
	Errors FieldErrors `json:"errors"`
}

// ValidationError carries every failing row of a rejected upload.
type ValidationError struct {
	Rows []RowError
}

func newValidationError(byRow map[int]FieldErrors) *ValidationError {
	rows := make([]RowError, 0, len(byRow))
	for row, errs := range byRow {
		rows = append(rows, RowError{Row: row, Errors: errs})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Row < rows[j].Row })
	return &ValidationError{Rows: rows}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("employees: %d invalid row(s)", len(e.Rows))
}

func (e *ValidationError) Unwrap() error {
	return httpx.ErrValidation
}
