package employees

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() map[string]string {
	return map[string]string{
		"employee_id":   "1001",
		"first_name":    "Ada",
		"last_name":     "Lovelace",
		"phone_number":  "555-0100",
		"company_name":  "Analytical Engines",
		"salary":        "5000.50",
		"manager_id":    "1",
		"department_id": "10",
	}
}

func TestValidateConvertsRecord(t *testing.T) {
	v := NewRowValidator()

	rec := validRecord()
	rec["first_name"] = "  Ada  "
	rec["employee_id"] = "1001.0"

	emp, errs := v.Validate(rec)
	require.Empty(t, errs)
	assert.Equal(t, int64(1001), emp.EmployeeID)
	assert.Equal(t, "Ada", emp.FirstName)
	assert.Equal(t, "Lovelace", emp.LastName)
	assert.Equal(t, "555-0100", emp.PhoneNumber)
	assert.Equal(t, "Analytical Engines", emp.CompanyName)
	assert.True(t, decimal.RequireFromString("5000.5").Equal(emp.Salary))
	assert.Equal(t, int64(1), emp.ManagerID)
	assert.Equal(t, int64(10), emp.DepartmentID)
}

func TestValidateFieldMessages(t *testing.T) {
	cases := []struct {
		name  string
		field string
		value string
		want  string
	}{
		{"salary not numeric", "salary", "lots", "A valid number is required."},
		{"salary blank", "salary", "", "A valid number is required."},
		{"salary too many digits", "salary", "123456789.123", "Ensure that there are no more than 10 digits in total."},
		{"salary too many places", "salary", "1.234", "Ensure that there are no more than 2 decimal places."},
		{"salary too many whole digits", "salary", "123456789", "Ensure that there are no more than 8 digits before the decimal point."},
		{"employee id not numeric", "employee_id", "abc", "A valid integer is required."},
		{"employee id fraction", "employee_id", "10.5", "A valid integer is required."},
		{"employee id too large", "employee_id", "2147483648", "Ensure this value is less than or equal to 2147483647."},
		{"employee id too small", "employee_id", "-2147483649", "Ensure this value is greater than or equal to -2147483648."},
		{"manager id huge", "manager_id", "99999999999999999999", "Ensure this value is less than or equal to 2147483647."},
		{"department blank", "department_id", "   ", "A valid integer is required."},
		{"first name blank", "first_name", " ", "This field may not be blank."},
		{"phone too long", "phone_number", strings.Repeat("9", 21), "Ensure this field has no more than 20 characters."},
		{"company too long", "company_name", strings.Repeat("x", 256), "Ensure this field has no more than 255 characters."},
	}

	v := NewRowValidator()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			rec[tc.field] = tc.value

			_, errs := v.Validate(rec)
			require.Len(t, errs, 1)
			assert.Equal(t, []string{tc.want}, errs[tc.field])
		})
	}
}

func TestValidateMissingColumnsAreRequired(t *testing.T) {
	v := NewRowValidator()

	rec := validRecord()
	delete(rec, "salary")
	delete(rec, "company_name")

	_, errs := v.Validate(rec)
	assert.Equal(t, FieldErrors{
		"salary":       {"This field is required."},
		"company_name": {"This field is required."},
	}, errs)
}

func TestValidateReportsEveryField(t *testing.T) {
	v := NewRowValidator()

	_, errs := v.Validate(map[string]string{})
	assert.Len(t, errs, len(Columns))
}

func TestPrecisionOf(t *testing.T) {
	cases := map[string]precision{
		"10.50": {total: 4, whole: 2, places: 2},
		"0.05":  {total: 2, whole: 0, places: 2},
		"0.00":  {total: 2, whole: 0, places: 2},
		"1e3":   {total: 4, whole: 4, places: 0},
		"-12":   {total: 2, whole: 2, places: 0},
	}
	for in, want := range cases {
		assert.Equal(t, want, precisionOf(decimal.RequireFromString(in)), in)
	}
}

func TestRenameColumnsDropsUnknownHeaders(t *testing.T) {
	got := renameColumns(map[string]string{
		"EMPLOYEE_ID": "1",
		"SALARY":      "10",
		"NOTES":       "ignored",
	})
	assert.Equal(t, map[string]string{"employee_id": "1", "salary": "10"}, got)
}
