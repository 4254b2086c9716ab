package employees

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/employees-api/internal/tabular"
)

// ReadCache caches list and detail reads between uploads.
type ReadCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context) error
}

// Service implements upload and retrieval of employees.
type Service struct {
	repo      Repository
	cache     ReadCache
	validator *RowValidator
	logger    *slog.Logger
}

// NewService wires the service. cache may be nil.
func NewService(repo Repository, cache ReadCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, validator: NewRowValidator(), logger: logger}
}

// Import validates every row of table and, only when all rows pass, stores
// them in one transaction. Companies are resolved by exact name.
func (s *Service) Import(ctx context.Context, table *tabular.Table) (ImportResult, error) {
	records := table.Records()

	valid := make([]Employee, 0, len(records))
	rowOf := make(map[int64]int, len(records))
	invalid := map[int]FieldErrors{}

	for i, rec := range records {
		row := i + 1
		emp, errs := s.validator.Validate(renameColumns(rec))
		if len(errs) > 0 {
			invalid[row] = errs
			continue
		}
		if _, seen := rowOf[emp.EmployeeID]; seen {
			invalid[row] = FieldErrors{fieldEmployeeID: {msgRepeated}}
			continue
		}
		rowOf[emp.EmployeeID] = row
		valid = append(valid, emp)
	}

	if len(rowOf) > 0 {
		ids := make([]int64, 0, len(rowOf))
		for id := range rowOf {
			ids = append(ids, id)
		}
		existing, err := s.repo.ExistingEmployeeIDs(ctx, ids)
		if err != nil {
			return ImportResult{}, err
		}
		for _, id := range existing {
			row := rowOf[id]
			if invalid[row] == nil {
				invalid[row] = FieldErrors{}
			}
			invalid[row].add(fieldEmployeeID, msgExists)
		}
	}

	if len(invalid) > 0 {
		return ImportResult{}, newValidationError(invalid)
	}

	result := ImportResult{}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		companies := map[string]int64{}
		for _, emp := range valid {
			companyID, ok := companies[emp.CompanyName]
			if !ok {
				company, err := tx.GetOrCreateCompany(ctx, emp.CompanyName)
				if err != nil {
					return err
				}
				companyID = company.ID
				companies[emp.CompanyName] = companyID
			}
			if err := tx.CreateEmployee(ctx, emp, companyID); err != nil {
				return err
			}
		}
		result = ImportResult{Created: len(valid), Companies: len(companies)}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	if result.Created > 0 && s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("invalidate employee cache", slog.Any("error", err))
		}
	}
	return result, nil
}

// ListEmployees returns every employee with its company name.
func (s *Service) ListEmployees(ctx context.Context) ([]Employee, error) {
	employees := []Employee{}
	err := s.cached(ctx, &employees, func(ctx context.Context) (any, error) {
		return s.repo.ListEmployees(ctx)
	}, "employees")
	if err != nil {
		return nil, err
	}
	return employees, nil
}

// GetEmployee looks an employee up by its business identifier.
func (s *Service) GetEmployee(ctx context.Context, employeeID int64) (Employee, error) {
	var employee Employee
	err := s.cached(ctx, &employee, func(ctx context.Context) (any, error) {
		return s.repo.GetEmployee(ctx, employeeID)
	}, "employee", strconv.FormatInt(employeeID, 10))
	if err != nil {
		return Employee{}, err
	}
	return employee, nil
}

// ListCompanies returns every company.
func (s *Service) ListCompanies(ctx context.Context) ([]Company, error) {
	companies := []Company{}
	err := s.cached(ctx, &companies, func(ctx context.Context) (any, error) {
		return s.repo.ListCompanies(ctx)
	}, "companies")
	if err != nil {
		return nil, err
	}
	return companies, nil
}

// Ping reports whether storage is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) cached(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error {
	if s.cache == nil {
		return s.load(ctx, dest, loader)
	}
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("build cache key", slog.Any("error", err))
		return s.load(ctx, dest, loader)
	}

	var loadErr error
	err = s.cache.FetchJSON(ctx, key, dest, func(ctx context.Context) (any, error) {
		value, err := loader(ctx)
		loadErr = err
		return value, err
	})
	if err == nil || loadErr != nil {
		return err
	}
	s.logger.Warn("cache read failed, loading from storage", slog.String("key", key), slog.Any("error", err))
	return s.load(ctx, dest, loader)
}

func (s *Service) load(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	return assign(dest, value)
}

func assign(dest, value any) error {
	switch d := dest.(type) {
	case *[]Employee:
		*d = value.([]Employee)
	case *Employee:
		*d = value.(Employee)
	case *[]Company:
		*d = value.([]Company)
	default:
		return fmt.Errorf("employees: unsupported cache destination %T", dest)
	}
	return nil
}
