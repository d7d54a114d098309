// Package httpapi holds the JSON request and response helpers shared by
// every dashd route.
package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/openclaw/dashboard/dashsdk"
)

// validate is shared so struct metadata is parsed once per type.
var validate = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}
	return v
})

func ResourceNotFound(rw http.ResponseWriter) {
	Write(rw, http.StatusNotFound, dashsdk.Response{
		Message: "Resource not found.",
	})
}

// InternalServerError writes a 500. err, when set, becomes the detail.
func InternalServerError(rw http.ResponseWriter, err error) {
	resp := dashsdk.Response{Message: "An internal server error occurred."}
	if err != nil {
		resp.Detail = err.Error()
	}
	Write(rw, http.StatusInternalServerError, resp)
}

func Unauthorized(rw http.ResponseWriter) {
	Write(rw, http.StatusUnauthorized, dashsdk.Response{
		Message: "Missing or invalid API token.",
	})
}

// Write encodes response as JSON with the given status. HTML is not
// escaped so task titles round-trip unchanged.
func Write(rw http.ResponseWriter, status int, response any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(response); err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	_, _ = rw.Write(buf.Bytes())
}

// Read decodes the request body into value and runs its `validate` tags.
// On failure it writes a 400 and returns false.
func Read(rw http.ResponseWriter, r *http.Request, value any) bool {
	if err := json.NewDecoder(r.Body).Decode(value); err != nil {
		detail := err.Error()
		if errors.Is(err, io.EOF) {
			detail = "empty body"
		}
		Write(rw, http.StatusBadRequest, dashsdk.Response{
			Message: "Request body must be valid JSON.",
			Detail:  detail,
		})
		return false
	}

	err := validate().Struct(value)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		Write(rw, http.StatusInternalServerError, dashsdk.Response{
			Message: "Internal error validating request body.",
			Detail:  err.Error(),
		})
		return false
	}
	validations := make([]dashsdk.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validations = append(validations, dashsdk.ValidationError{
			Field:  fe.Field(),
			Detail: describe(fe),
		})
	}
	Write(rw, http.StatusBadRequest, dashsdk.Response{
		Message:     "Validation failed.",
		Validations: validations,
	})
	return false
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Field is required."
	case "notblank":
		return "Field must not be blank."
	case "max":
		return fmt.Sprintf("Field must be at most %s characters.", fe.Param())
	default:
		return fmt.Sprintf("Field failed the %q check.", fe.Tag())
	}
}

const websocketCloseMaxLen = 123

// WebsocketCloseSprintf formats a websocket close reason, truncated to the
// length the protocol allows.
func WebsocketCloseSprintf(format string, vars ...any) string {
	msg := fmt.Sprintf(format, vars...)
	if len(msg) > websocketCloseMaxLen {
		return strings.ToValidUTF8(msg[:websocketCloseMaxLen], "")
	}
	return msg
}
