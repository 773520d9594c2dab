// Package validation turns raw request bodies into typed models, reporting every violated
// field by its JSON path.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	appErr "usersvc/pkg/errors"
)

const failedMessage = "Validation failed"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}
	return v
}

// maxBytes limits the encoded length of a string, unlike max which counts runes.
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		panic(fmt.Sprintf("maxbytes: bad param %q", fl.Param()))
	}
	return len(fl.Field().String()) <= limit
}

// decodeAndValidate unmarshals body into dst, lets normalize clean it up and runs the struct
// validator. A JSON type error on one field does not hide the violations of the others.
func decodeAndValidate(body []byte, dst any, normalize func()) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return appErr.Invalid(failedMessage, map[string]string{"body": "request body is required"})
	}

	fields := map[string]string{}
	var typeErrs map[string]string
	if err := json.Unmarshal(body, dst); err != nil {
		field, message, partial := decodeError(err)
		if !partial {
			return appErr.Invalid(failedMessage, map[string]string{field: message})
		}
		typeErrs = map[string]string{field: message}
	}
	if normalize != nil {
		normalize()
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return appErr.Wrap(err, appErr.CodeInternal, "failed to validate request body")
		}
		for _, fe := range verrs {
			fields[fieldPath(fe)] = fieldMessage(fe)
		}
	}
	// The type error explains a field better than the rule its zero value broke.
	for field, message := range typeErrs {
		fields[field] = message
	}

	if len(fields) > 0 {
		return appErr.Invalid(failedMessage, fields)
	}
	return nil
}

// decodeError describes a json.Unmarshal failure. partial reports whether the rest of the
// document was still decoded, which encoding/json does after a type mismatch on a field.
func decodeError(err error) (field, message string, partial bool) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return "body", "must be a JSON object", false
		}
		return typeErr.Field, fmt.Sprintf("must be %s, got %s", kindName(typeErr.Type), typeErr.Value), true
	}
	return "body", "malformed JSON", false
}

// fieldPath strips the root struct name from the namespace: userRequest.fullName.firstName
// becomes fullName.firstName.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "maxbytes":
		return fmt.Sprintf("must be at most %s bytes", fe.Param())
	case "email":
		return "must be a valid email address"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

func kindName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "an object"
	}
}

func trim(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
