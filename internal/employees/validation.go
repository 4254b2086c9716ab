package employees

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	msgRequired     = "This field is required."
	msgBlank        = "This field may not be blank."
	msgInteger      = "A valid integer is required."
	msgNumber       = "A valid number is required."
	msgExists       = "employee with this employee id already exists."
	msgRepeated     = "employee with this employee id is repeated in this upload."
	fieldEmployeeID = "employee_id"
)

// rowInput is an uploaded row after column renaming, as trimmed text.
type rowInput struct {
	EmployeeID   string `json:"employee_id" validate:"whole,int32"`
	FirstName    string `json:"first_name" validate:"required,max=255"`
	LastName     string `json:"last_name" validate:"required,max=255"`
	PhoneNumber  string `json:"phone_number" validate:"required,max=20"`
	CompanyName  string `json:"company_name" validate:"required,max=255"`
	Salary       string `json:"salary" validate:"decimal,maxdigits=10,maxplaces=2,maxwhole=8"`
	ManagerID    string `json:"manager_id" validate:"whole,int32"`
	DepartmentID string `json:"department_id" validate:"whole,int32"`
}

func (in *rowInput) fields() map[string]*string {
	return map[string]*string{
		"employee_id":   &in.EmployeeID,
		"first_name":    &in.FirstName,
		"last_name":     &in.LastName,
		"phone_number":  &in.PhoneNumber,
		"company_name":  &in.CompanyName,
		"salary":        &in.Salary,
		"manager_id":    &in.ManagerID,
		"department_id": &in.DepartmentID,
	}
}

// RowValidator checks uploaded rows against the employee shape.
type RowValidator struct {
	validate *validator.Validate
}

// NewRowValidator registers the employee field rules.
func NewRowValidator() *RowValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	for tag, fn := range map[string]validator.Func{
		"whole":     validateWhole,
		"int32":     validateInt32,
		"decimal":   validateDecimal,
		"maxdigits": validateMaxDigits,
		"maxplaces": validateMaxPlaces,
		"maxwhole":  validateMaxWhole,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("employees: register %s validation: %v", tag, err))
		}
	}
	return &RowValidator{validate: v}
}

// Validate checks a record keyed by field name and converts it. Absent
// fields are reported as required; present ones run the struct rules.
func (v *RowValidator) Validate(record map[string]string) (Employee, FieldErrors) {
	var in rowInput
	present := make(map[string]bool, len(Columns))
	for field, dst := range in.fields() {
		val, ok := record[field]
		present[field] = ok
		*dst = strings.TrimSpace(val)
	}

	errs := FieldErrors{}
	if err := v.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			errs.add("non_field_errors", err.Error())
			return Employee{}, errs
		}
		for _, fe := range verrs {
			errs.add(fe.Field(), fieldMessage(fe))
		}
	}
	for field, ok := range present {
		if !ok {
			errs[field] = []string{msgRequired}
		}
	}
	if len(errs) > 0 {
		return Employee{}, errs
	}
	return in.employee(), nil
}

// employee converts an input that already passed validation.
func (in rowInput) employee() Employee {
	salary, _ := decimal.NewFromString(in.Salary)
	return Employee{
		EmployeeID:   mustWhole(in.EmployeeID),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PhoneNumber:  in.PhoneNumber,
		Salary:       salary,
		ManagerID:    mustWhole(in.ManagerID),
		DepartmentID: mustWhole(in.DepartmentID),
		CompanyName:  in.CompanyName,
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgBlank
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "whole":
		return msgInteger
	case "int32":
		if value, _ := fe.Value().(string); strings.HasPrefix(value, "-") {
			return fmt.Sprintf("Ensure this value is greater than or equal to %d.", math.MinInt32)
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %d.", math.MaxInt32)
	case "decimal":
		return msgNumber
	case "maxdigits":
		return fmt.Sprintf("Ensure that there are no more than %s digits in total.", fe.Param())
	case "maxplaces":
		return fmt.Sprintf("Ensure that there are no more than %s decimal places.", fe.Param())
	case "maxwhole":
		return fmt.Sprintf("Ensure that there are no more than %s digits before the decimal point.", fe.Param())
	default:
		return fe.Error()
	}
}

// Spreadsheets hand integers over as floats ("1001.0"); the zero fraction
// is accepted and dropped.
var zeroFraction = regexp.MustCompile(`\.0*\s*$`)

func parseWhole(s string) (int64, error) {
	return strconv.ParseInt(zeroFraction.ReplaceAllString(s, ""), 10, 64)
}

func mustWhole(s string) int64 {
	n, _ := parseWhole(s)
	return n
}

func validateWhole(fl validator.FieldLevel) bool {
	_, err := parseWhole(fl.Field().String())
	return err == nil || errors.Is(err, strconv.ErrRange)
}

func validateInt32(fl validator.FieldLevel) bool {
	n, err := parseWhole(fl.Field().String())
	return err == nil && n >= math.MinInt32 && n <= math.MaxInt32
}

func validateDecimal(fl validator.FieldLevel) bool {
	_, err := decimal.NewFromString(fl.Field().String())
	return err == nil
}

func validateMaxDigits(fl validator.FieldLevel) bool {
	return checkPrecision(fl, func(p precision) int { return p.total })
}

func validateMaxPlaces(fl validator.FieldLevel) bool {
	return checkPrecision(fl, func(p precision) int { return p.places })
}

func validateMaxWhole(fl validator.FieldLevel) bool {
	return checkPrecision(fl, func(p precision) int { return p.whole })
}

func checkPrecision(fl validator.FieldLevel, pick func(precision) int) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return pick(precisionOf(d)) <= limit
}

type precision struct {
	total  int
	whole  int
	places int
}

// precisionOf counts digits the way the literal was written, so "10.50"
// has two decimal places and "1e3" has four whole digits.
func precisionOf(d decimal.Decimal) precision {
	digits := len(new(big.Int).Abs(d.Coefficient()).String())
	exp := int(d.Exponent())
	switch {
	case exp >= 0:
		return precision{total: digits + exp, whole: digits + exp}
	case digits > -exp:
		return precision{total: digits, whole: digits + exp, places: -exp}
	default:
		return precision{total: -exp, places: -exp}
	}
}
