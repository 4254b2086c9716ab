package employees

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/employees-api/internal/platform/httpx"
	"github.com/odyssey-erp/employees-api/internal/tabular"
)

const uploadField = "file"

// Rejection reasons reported to the UploadObserver.
const (
	RejectMissingFile       = "missing_file"
	RejectUnsupportedFormat = "unsupported_format"
	RejectUnreadable        = "unreadable"
	RejectTooLarge          = "too_large"
	RejectValidation        = "validation"
	RejectConflict          = "conflict"
	RejectInternal          = "internal"
)

// EmployeeService is the contract the handler needs from the service.
type EmployeeService interface {
	Import(ctx context.Context, table *tabular.Table) (ImportResult, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	GetEmployee(ctx context.Context, employeeID int64) (Employee, error)
	ListCompanies(ctx context.Context) ([]Company, error)
}

// UploadObserver records upload outcomes, typically as metrics.
type UploadObserver interface {
	ObserveUpload(rows int)
	RejectUpload(reason string)
}

type nopObserver struct{}

func (nopObserver) ObserveUpload(int)   {}
func (nopObserver) RejectUpload(string) {}

// Handler serves the upload and retrieval endpoints.
type Handler struct {
	logger         *slog.Logger
	service        EmployeeService
	observer       UploadObserver
	maxUploadBytes int64
}

// NewHandler constructs a Handler. observer may be nil; maxUploadBytes of
// zero leaves request bodies uncapped.
func NewHandler(logger *slog.Logger, service EmployeeService, observer UploadObserver, maxUploadBytes int64) *Handler {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Handler{logger: logger, service: service, observer: observer, maxUploadBytes: maxUploadBytes}
}

// MountRoutes registers the routes. Paths carry no trailing slash; the
// router strips it from requests.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/upload", h.upload)
	r.Get("/employees", h.listEmployees)
	r.Get("/employees/{employeeID}", h.getEmployee)
	r.Get("/companies", h.listCompanies)
}

type employeeResponse struct {
	EmployeeID   int64  `json:"employee_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PhoneNumber  string `json:"phone_number"`
	Salary       string `json:"salary"`
	ManagerID    int64  `json:"manager_id"`
	DepartmentID int64  `json:"department_id"`
	CompanyName  string `json:"company_name"`
}

func toResponse(e Employee) employeeResponse {
	return employeeResponse{
		EmployeeID:   e.EmployeeID,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		PhoneNumber:  e.PhoneNumber,
		Salary:       e.Salary.StringFixed(2),
		ManagerID:    e.ManagerID,
		DepartmentID: e.DepartmentID,
		CompanyName:  e.CompanyName,
	}
}

type uploadResponse struct {
	Message string `json:"message"`
	Created int    `json:"created"`
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	uploadID := uuid.NewString()
	w.Header().Set("X-Upload-ID", uploadID)
	logger := h.logger.With(slog.String("upload_id", uploadID))

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.observer.RejectUpload(RejectTooLarge)
			httpx.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Uploaded file exceeds %d bytes", tooLarge.Limit))
			return
		}
		logger.Info("upload without file", slog.Any("error", err))
		h.observer.RejectUpload(RejectMissingFile)
		httpx.Error(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()
	logger = logger.With(slog.String("filename", header.Filename), slog.Int64("size", header.Size))

	format, err := tabular.Detect(header.Filename)
	if err != nil {
		logger.Info("upload rejected", slog.String("reason", RejectUnsupportedFormat))
		h.observer.RejectUpload(RejectUnsupportedFormat)
		httpx.Error(w, http.StatusBadRequest, "Invalid file format. Only CSV and Excel are supported.")
		return
	}

	table, err := tabular.Parse(file, format)
	if err != nil {
		logger.Info("upload rejected", slog.String("reason", RejectUnreadable), slog.Any("error", err))
		h.observer.RejectUpload(RejectUnreadable)
		httpx.Error(w, http.StatusBadRequest, "Error reading file: "+readCause(err))
		return
	}

	result, err := h.service.Import(r.Context(), table)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			logger.Info("upload rejected", slog.String("reason", RejectValidation), slog.Int("rows", len(table.Rows)), slog.Int("invalid_rows", len(verr.Rows)))
			h.observer.RejectUpload(RejectValidation)
			httpx.JSON(w, http.StatusBadRequest, httpx.ErrorBody{Error: "Validation failed", Rows: verr.Rows})
		case errors.Is(err, ErrDuplicate):
			logger.Warn("upload conflicted", slog.Any("error", err))
			h.observer.RejectUpload(RejectConflict)
			httpx.RespondError(w, err)
		default:
			logger.Error("import employees", slog.Any("error", err))
			h.observer.RejectUpload(RejectInternal)
			httpx.RespondError(w, err)
		}
		return
	}

	logger.Info("upload stored", slog.Int("employees", result.Created), slog.Int("companies", result.Companies))
	h.observer.ObserveUpload(result.Created)
	httpx.JSON(w, http.StatusCreated, uploadResponse{Message: "Data uploaded successfully", Created: result.Created})
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.ListEmployees(r.Context())
	if err != nil {
		h.logger.Error("list employees failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]employeeResponse, 0, len(employees))
	for _, e := range employees {
		out = append(out, toResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusNotFound, "Employee not found")
		return
	}

	employee, err := h.service.GetEmployee(r.Context(), employeeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "Employee not found")
			return
		}
		h.logger.Error("get employee failed", slog.Any("error", err), slog.Int64("employee_id", employeeID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(employee))
}

func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.ListCompanies(r.Context())
	if err != nil {
		h.logger.Error("list companies failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if companies == nil {
		companies = []Company{}
	}
	httpx.JSON(w, http.StatusOK, companies)
}

// readCause drops the package prefix from a tabular parse error.
func readCause(err error) string {
	return strings.TrimPrefix(err.Error(), tabular.ErrUnreadable.Error()+": ")
}
