package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/iancoleman/strcase"
)

var (
	// Based on NIST 800-63B Guidelines
	rePassword = regexp.MustCompile(`^.{8,72}$`)
	reUsername = regexp.MustCompile(`^[A-Za-z0-9._-]{3,64}$`)
)

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("translator not found")

// V10Validator implements Validator using go-playground/validator v10.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// V10ValidationError is a field-to-message map returned when validation fails.
//
// Keys are field names in snake_case to match typical JSON conventions.
type V10ValidationError map[string]string

// Error implements the error interface.
func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	b, err := json.Marshal(vs)
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// Values returns the field error map.
func (vs V10ValidationError) Values() map[string]string {
	return vs
}

// NewV10Validator constructs a V10Validator with English translations and custom rules.
func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}

	if err := v10CustomValidation(validate, enTrans); err != nil {
		return nil, err
	}

	return &V10Validator{
		validate:   validate,
		translator: enTrans,
	}, nil
}

// Validate validates a struct and returns a V10ValidationError on failure.
func (v *V10Validator) Validate(data any) error {
	if err := v.validate.Struct(data); err != nil {
		var validateErrs validator.ValidationErrors
		if !errors.As(err, &validateErrs) {
			return err
		}

		errV10 := make(V10ValidationError)
		for _, fe := range validateErrs {
			errV10[strcase.ToSnake(fe.Field())] = fe.Translate(v.translator)
		}

		return errV10
	}

	return nil
}

func v10CustomValidation(validate *validator.Validate, enTrans ut.Translator) error {
	rules := []struct {
		tag     string
		re      *regexp.Regexp
		message string
	}{
		{tag: "password", re: rePassword, message: "{0} must be 8-72 characters"},
		{tag: "username", re: reUsername, message: "{0} must be 3-64 letters, digits, '.', '-' or '_'"},
	}

	for _, rule := range rules {
		re := rule.re
		err := validate.RegisterValidation(rule.tag, func(fl validator.FieldLevel) bool {
			s, ok := fl.Field().Interface().(string)
			return ok && re.MatchString(s)
		})
		if err != nil {
			return err
		}

		message := rule.message
		err = validate.RegisterTranslation(rule.tag, enTrans,
			func(ut ut.Translator) error {
				return ut.Add(rule.tag, message, false)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				t, err := ut.T(fe.Tag(), fe.Field())
				if err != nil {
					slog.Warn("failed to translate validation error", "tag", fe.Tag(), "error", err)
					return fe.Error()
				}
				return t
			},
		)
		if err != nil {
			return err
		}
	}

	return nil
}
