package validate

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once  sync.Once
	v     *validator.Validate
	trans ut.Translator
)

var (
	phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	codeRe  = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
)

func setup() {
	v = validator.New(validator.WithRequiredStructEnabled())
	enT := en.New()
	uni := ut.New(enT, enT)
	trans, _ = uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(v, trans); err != nil {
		panic(err)
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	registerCustomTags()
}

func registerCustomTags() {
	must(v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("code", func(fl validator.FieldLevel) bool {
		return codeRe.MatchString(fl.Field().String())
	}))
	must(v.RegisterTranslation("phone", trans, addTranslation("phone", "{0} must be a valid phone number"), translate))
	must(v.RegisterTranslation("code", trans, addTranslation("code", "{0} may only contain letters, digits, '-' and '_'"), translate))
}

func addTranslation(tag, msg string) validator.RegisterTranslationsFunc {
	return func(t ut.Translator) error {
		return t.Add(tag, msg, false)
	}
}

func translate(t ut.Translator, fe validator.FieldError) string {
	msg, err := t.T(fe.Tag(), fe.Field())
	if err != nil {
		return fe.Error()
	}
	return msg
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Validator returns the shared instance, built on first use.
func Validator() *validator.Validate {
	once.Do(setup)
	return v
}

// Struct validates value and returns translated messages keyed by json field
// name, or nil when value is valid.
func Struct(value any) map[string]string {
	if err := Validator().Struct(value); err != nil {
		return fieldErrors(err)
	}
	return nil
}

// Var validates a single value against tag, e.g. "email" or "min=1".
func Var(value any, tag string) string {
	if err := Validator().Var(value, tag); err != nil {
		for _, msg := range fieldErrors(err) {
			return msg
		}
		return err.Error()
	}
	return ""
}

func fieldErrors(err error) map[string]string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fe.Field()
		// nested fields keep their path below the root struct
		if ns := fe.Namespace(); strings.Count(ns, ".") > 1 {
			key = ns[strings.Index(ns, ".")+1:]
		}
		out[key] = strings.TrimSpace(fe.Translate(trans))
	}
	return out
}
