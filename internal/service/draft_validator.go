package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/segyhp/agent-wallet/internal/domain"
)

var (
	mobilePattern  = regexp.MustCompile(`^\d{10}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}\d{4}[A-Z]$`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
)

var fieldMessages = map[string]string{
	"first_name": "First name is required",
	"last_name":  "Last name is required",
	"mobile":     "Mobile number must be 10 digits",
	"email":      "Enter a valid email address",
	"pan":        "PAN must look like ABCDE1234F",
	"pincode":    "Pincode must be 6 digits",
	"plan_id":    "Select a plan",
}

// DraftValidator checks a ProposalDraft and reports every invalid field.
type DraftValidator struct {
	validate *validator.Validate
}

// NewDraftValidator registers the portal's field formats.
func NewDraftValidator() *DraftValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("mobile", matches(mobilePattern))
	_ = v.RegisterValidation("pan", matches(panPattern))
	_ = v.RegisterValidation("pincode", matches(pincodePattern))

	return &DraftValidator{validate: v}
}

func matches(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	}
}

// Validate normalizes the draft in place and returns field name → message
// for every violation. An empty map means the draft is valid.
func (v *DraftValidator) Validate(draft *domain.ProposalDraft) map[string]string {
	draft.Normalize()

	fields := map[string]string{}
	err := v.validate.Struct(draft)
	if err == nil {
		return fields
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		fields["form"] = err.Error()
		return fields
	}

	for _, fe := range validationErrors {
		name := fe.Field()
		if msg, ok := fieldMessages[name]; ok {
			fields[name] = msg
		} else {
			fields[name] = fe.Error()
		}
	}
	return fields
}
