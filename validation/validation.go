// Package validation checks request payloads with go-playground/validator and
// reports failures as a field → rule map.
package validation

import (
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON (or form) name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	return v
}

// Violations maps a field name to the rule it broke.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records a violation unless the field already has one.
func (v Violations) Add(field, rule string) {
	if _, ok := v[field]; !ok {
		v[field] = rule
	}
}

// Err turns the violations into a 400 error, or nil when there are none.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msg := "validation failed: " + strings.Join(fields, ", ")
	return httperror.NewHTTPError(http.StatusBadRequest, msg).AddMetaValue("violations", map[string]string(v))
}

// Struct validates s against its `validate` tags.
func Struct(s any) Violations {
	out := Violations{}
	err := validate.Struct(s)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out.Add(fieldPath(fe.Namespace()), rule)
	}
	return out
}

// fieldPath drops the root struct name: "createReq.items[0].quantity" → "items[0].quantity".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// Bind decodes the request into a T and validates it.
func Bind[T any](c echo.Context) (T, error) {
	var v T
	if err := c.Bind(&v); err != nil {
		return v, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid request body: %v", bindMessage(err))
	}
	if err := Struct(&v).Err(); err != nil {
		return v, err
	}
	return v, nil
}

func bindMessage(err error) any {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Message
	}
	return err
}

// RangeFloat records a violation when val is outside [minVal, maxVal].
func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if val < minVal || val > maxVal {
		v.Add(field, "out_of_range")
	}
}
