package jobs

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kubev2v/doc-processor/pkg/docconv"
)

type ValidationRule struct {
	Rule func(v *validator.Validate)
}

// Validator is a wrapper around the actual validator. It registers the
// payload rules and turns the underlying errors into a readable message.
type Validator struct {
	validator *validator.Validate
}

func NewValidator() *Validator {
	v := &Validator{validator: validator.New()}
	// report fields under their payload names
	v.validator.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.Register(NewPayloadRules()...)
	return v
}

func (v *Validator) Register(rules ...ValidationRule) {
	for _, validationRule := range rules {
		validationRule.Rule(v.validator)
	}
}

// Struct returns nil or a message listing every failed field.
func (v *Validator) Struct(s any) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	t := reflect.TypeOf(s)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe, t))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError, t reflect.Type) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "local_path":
		return fmt.Sprintf("%s must be a local path", fe.Field())
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", fe.Field(), jsonName(t, fe.Param()))
	default:
		return fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
	}
}

// jsonName maps a Go field name used as a rule parameter to its payload key.
func jsonName(t reflect.Type, field string) string {
	if t == nil || t.Kind() != reflect.Struct {
		return field
	}
	f, ok := t.FieldByName(field)
	if !ok {
		return field
	}
	if name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]; name != "" && name != "-" {
		return name
	}
	return field
}

func NewPayloadRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: func(v *validator.Validate) {
				_ = v.RegisterValidation("local_path", localPathValidator)
			},
		},
	}
}

// artifacts are always written to the local filesystem
func localPathValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return !docconv.IsRemote(val) && strings.TrimSpace(val) != ""
}
