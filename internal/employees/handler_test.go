package employees

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/employees-api/internal/tabular"
)

type recordingObserver struct {
	rows    []int
	reasons []string
}

func (o *recordingObserver) ObserveUpload(rows int)     { o.rows = append(o.rows, rows) }
func (o *recordingObserver) RejectUpload(reason string) { o.reasons = append(o.reasons, reason) }

type testServer struct {
	router   http.Handler
	repo     *SQLiteRepository
	observer *recordingObserver
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := newSQLiteRepository(t)
	observer := &recordingObserver{}
	handler := NewHandler(discardLogger(), NewService(repo, nil, discardLogger()), observer, 0)
	return &testServer{router: routerFor(handler), repo: repo, observer: observer}
}

func routerFor(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.StripSlashes)
	h.MountRoutes(r)
	return r
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func (s *testServer) upload(t *testing.T, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func csvFile(rows ...string) []byte {
	return []byte("EMPLOYEE_ID,FIRST_NAME,LAST_NAME,PHONE_NUMBER,COMPANY_NAME,SALARY,MANAGER_ID,DEPARTMENT_ID\n" + strings.Join(rows, "\n") + "\n")
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestUploadCSVCreatesCompanyAndEmployees(t *testing.T) {
	s := newTestServer(t)

	rr := s.upload(t, "staff.csv", csvFile(
		"1,Ada,Lovelace,555-0100,Analytical Engines,5000,0,10",
		"2,Charles,Babbage,555-0101,Analytical Engines,6000.5,1,10",
		"3,Grace,Hopper,555-0102,Analytical Engines,7000.25,1,20",
	))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"message":"Data uploaded successfully","created":3}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Upload-ID"))
	assert.Equal(t, []int{3}, s.observer.rows)

	companies := decode[[]Company](t, s.get(t, "/companies/"))
	require.Len(t, companies, 1)
	assert.Equal(t, "Analytical Engines", companies[0].Name)

	rr = s.get(t, "/employees/")
	require.Equal(t, http.StatusOK, rr.Code)
	employees := decode[[]map[string]any](t, rr)
	require.Len(t, employees, 3)
	for _, e := range employees {
		assert.Equal(t, "Analytical Engines", e["company_name"])
	}
	assert.Equal(t, "6000.50", employees[1]["salary"])
}

func TestUploadWithInvalidRowStoresNothing(t *testing.T) {
	s := newTestServer(t)

	rr := s.upload(t, "staff.csv", csvFile(
		"1,Ada,Lovelace,555-0100,Acme,5000,0,10",
		"2,Charles,Babbage,555-0101,Acme,lots,1,10",
	))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Validation failed","rows":[{"row":2,"errors":{"salary":["A valid number is required."]}}]}`, rr.Body.String())
	assert.Equal(t, []string{RejectValidation}, s.observer.reasons)

	assert.JSONEq(t, `[]`, s.get(t, "/employees/").Body.String())
	assert.JSONEq(t, `[]`, s.get(t, "/companies/").Body.String())
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	s := newTestServer(t)

	rr := s.upload(t, "staff.txt", csvFile("1,Ada,Lovelace,555-0100,Acme,5000,0,10"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid file format. Only CSV and Excel are supported."}`, rr.Body.String())
	assert.Equal(t, []string{RejectUnsupportedFormat}, s.observer.reasons)

	companies, err := s.repo.ListCompanies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, companies)
}

func TestUploadWithoutFile(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, "attachment", "staff.csv", csvFile())
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/upload/", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, []string{RejectMissingFile, RejectMissingFile}, s.observer.reasons)
}

func TestUploadUnreadableFile(t *testing.T) {
	s := newTestServer(t)

	rr := s.upload(t, "staff.xlsx", []byte("definitely not a workbook"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode[map[string]string](t, rr)
	assert.True(t, strings.HasPrefix(body["error"], "Error reading file: "), body["error"])

	rr = s.upload(t, "empty.csv", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body = decode[map[string]string](t, rr)
	assert.Equal(t, "Error reading file: no columns to parse from file", body["error"])
}

func TestUploadRejectsNonUTF8CSV(t *testing.T) {
	s := newTestServer(t)

	rr := s.upload(t, "latin1.csv", csvFile("1,Jos\xe9,Lovelace,555-0100,Acme,5000,0,10"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode[map[string]string](t, rr)
	assert.True(t, strings.HasPrefix(body["error"], "Error reading file: "), body["error"])
	assert.Equal(t, []string{RejectUnreadable}, s.observer.reasons)

	assert.JSONEq(t, `[]`, s.get(t, "/employees/").Body.String())
	assert.Equal(t, http.StatusNotFound, s.get(t, "/employees/1/").Code)
}

func TestUploadXLSX(t *testing.T) {
	s := newTestServer(t)

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"EMPLOYEE_ID", "FIRST_NAME", "LAST_NAME", "PHONE_NUMBER", "COMPANY_NAME", "SALARY", "MANAGER_ID", "DEPARTMENT_ID", "NOTES"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{501, "Linus", "Torvalds", "5550199", "Kernel Co", 9000.75, 1, 3, "ignored"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rr := s.upload(t, "staff.XLSX", buf.Bytes())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.get(t, "/employees/501/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"employee_id": 501,
		"first_name": "Linus",
		"last_name": "Torvalds",
		"phone_number": "5550199",
		"salary": "9000.75",
		"manager_id": 1,
		"department_id": 3,
		"company_name": "Kernel Co"
	}`, rr.Body.String())
}

func TestGetEmployee(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.upload(t, "a.csv", csvFile(
		"10,Ada,Lovelace,555-0100,Acme,100,0,1",
		"11,Alan,Turing,555-0111,Globex,200,10,2",
	)).Code)

	rr := s.get(t, "/employees/11/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"employee_id": 11,
		"first_name": "Alan",
		"last_name": "Turing",
		"phone_number": "555-0111",
		"salary": "200.00",
		"manager_id": 10,
		"department_id": 2,
		"company_name": "Globex"
	}`, rr.Body.String())

	for _, path := range []string{"/employees/12/", "/employees/abc/"} {
		rr = s.get(t, path)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.JSONEq(t, `{"error":"Employee not found"}`, rr.Body.String(), path)
	}
}

func TestTwoUploadsShareCompany(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusCreated, s.upload(t, "a.csv", csvFile("1,Ada,Lovelace,555-0100,Acme,100,0,1")).Code)
	require.Equal(t, http.StatusCreated, s.upload(t, "b.csv", csvFile("2,Alan,Turing,555-0111,Acme,200,1,1")).Code)

	companies := decode[[]Company](t, s.get(t, "/companies/"))
	require.Len(t, companies, 1)
	assert.Equal(t, "Acme", companies[0].Name)
}

func TestReuploadFailsValidation(t *testing.T) {
	s := newTestServer(t)
	file := csvFile("1,Ada,Lovelace,555-0100,Acme,100,0,1")

	require.Equal(t, http.StatusCreated, s.upload(t, "a.csv", file).Code)

	rr := s.upload(t, "a.csv", file)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Validation failed","rows":[{"row":1,"errors":{"employee_id":["employee with this employee id already exists."]}}]}`, rr.Body.String())

	employees := decode[[]map[string]any](t, s.get(t, "/employees/"))
	assert.Len(t, employees, 1)
}

func TestCompaniesEmpty(t *testing.T) {
	s := newTestServer(t)

	rr := s.get(t, "/companies/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

type stubService struct {
	importErr error
	listErr   error
}

func (s stubService) Import(context.Context, *tabular.Table) (ImportResult, error) {
	return ImportResult{}, s.importErr
}

func (s stubService) ListEmployees(context.Context) ([]Employee, error) { return nil, s.listErr }

func (s stubService) GetEmployee(context.Context, int64) (Employee, error) {
	return Employee{}, s.listErr
}

func (s stubService) ListCompanies(context.Context) ([]Company, error) { return nil, s.listErr }

func TestUploadErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		reason string
	}{
		{fmt.Errorf("%w: employee_id 1", ErrDuplicate), http.StatusConflict, RejectConflict},
		{errors.New("connection reset"), http.StatusInternalServerError, RejectInternal},
	}
	for _, tc := range cases {
		observer := &recordingObserver{}
		router := routerFor(NewHandler(discardLogger(), stubService{importErr: tc.err}, observer, 0))

		body, contentType := multipartBody(t, "file", "a.csv", csvFile("1,Ada,Lovelace,555-0100,Acme,100,0,1"))
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, tc.status, rr.Code)
		assert.Equal(t, []string{tc.reason}, observer.reasons)
	}
}

func TestReadErrorsAreInternal(t *testing.T) {
	router := routerFor(NewHandler(discardLogger(), stubService{listErr: errors.New("db gone")}, nil, 0))

	for _, path := range []string{"/employees/", "/employees/1/", "/companies/"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code, path)
		assert.JSONEq(t, `{"error":"Internal Server Error"}`, rr.Body.String(), path)
	}
}

func TestUploadBodyLimit(t *testing.T) {
	repo := newSQLiteRepository(t)
	router := routerFor(NewHandler(discardLogger(), NewService(repo, nil, discardLogger()), nil, 64))

	body, contentType := multipartBody(t, "file", "a.csv", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/upload/", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.GreaterOrEqual(t, rr.Code, http.StatusBadRequest)
	assert.Less(t, rr.Code, http.StatusInternalServerError)
}
