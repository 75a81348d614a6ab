package dtos

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/leadflow/modules/leads/domain/entities/conversation"
	"github.com/iota-uz/leadflow/modules/leads/services"
	"github.com/iota-uz/leadflow/pkg/phone"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "us_phone", func(fl validator.FieldLevel) bool {
		return phone.Valid(fl.Field().String())
	})
	mustRegister(v, "platform", func(fl validator.FieldLevel) bool {
		_, ok := conversation.ParsePlatform(fl.Field().String())
		return ok
	})
	mustRegister(v, "event_type", func(fl validator.FieldLevel) bool {
		_, ok := services.ParseEventType(fl.Field().String())
		return ok
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

var messages = map[string]string{
	"required":   "is required",
	"email":      "must be a valid email address",
	"us_phone":   "must be a 10 digit US phone number",
	"platform":   "must be one of web, facebook, sms, email",
	"event_type": "is not a known event type",
	"max":        "is too long",
}

// check runs the validator and flattens failures to field -> message.
func check(dto any) (map[string]string, bool) {
	err := validate.Struct(dto)
	if err == nil {
		return map[string]string{}, true
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}, false
	}
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		msg, known := messages[fe.Tag()]
		if !known {
			msg = "is invalid"
		}
		out[fe.Field()] = msg
	}
	return out, false
}
