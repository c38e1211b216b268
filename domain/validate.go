package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// ValidationError lists the draft fields that failed the local checks.
// It is a fast client-side guard only; the server validates again.
type ValidationError struct {
	Missing  []string // blank required fields, by JSON name
	Invalid  []string // present but out of range or not allowed
	Mismatch bool     // password pair differs
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "Please fill in all required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "Invalid value for: "+strings.Join(e.Invalid, ", "))
	}
	if e.Mismatch {
		parts = append(parts, "Passwords do not match.")
	}
	if len(parts) == 0 {
		return "invalid draft"
	}
	return strings.Join(parts, ". ")
}

type trimmer interface{ Trim() }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func draftValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
			panic(fmt.Sprintf("register notblank: %v", err))
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate = v
	})
	return validate
}

// Validate trims the draft in place and checks its required fields.
// draft must be a pointer to one of the draft structs.
func Validate(draft any) error {
	if t, ok := draft.(trimmer); ok {
		t.Trim()
	}
	err := draftValidator().Struct(draft)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "notblank", "required":
			out.Missing = append(out.Missing, fe.Field())
		case "eqfield":
			out.Mismatch = true
		default:
			out.Invalid = append(out.Invalid, fe.Field())
		}
	}
	return out
}
