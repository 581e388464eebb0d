// Package validation turns raw path parameters, query strings and form bodies
// into typed values. Every entry point returns a Result instead of an error so
// callers branch on Result.Error before touching Result.Data.
package validation

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/form"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/iota-uz/saaskit/pkg/serrors"
)

var (
	Decoder    = newDecoder()
	Validate   = validator.New(validator.WithRequiredStructEnabled())
	translator ut.Translator
)

var ErrValidationFailed = serrors.NewError(serrors.CodeValidationFailed, "validation failed", "Errors.ValidationFailed")

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func init() {
	Validate.RegisterTagNameFunc(fieldName)
	locale := en.New()
	translator, _ = ut.New(locale, locale).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(Validate, translator); err != nil {
		panic(err)
	}
}

func newDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		if len(vals) == 0 || vals[0] == "" {
			return time.Time{}, nil
		}
		var err error
		for _, layout := range timeLayouts {
			var t time.Time
			if t, err = time.Parse(layout, vals[0]); err == nil {
				return t, nil
			}
		}
		return nil, err
	}, time.Time{})
	return d
}

// fieldName reports fields by their form key so messages and FieldErrors keys
// line up with what the client submitted.
func fieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// Result is either {Data} or {Error, FieldErrors}. Data is nil both on failure
// and when no schema was declared.
type Result[T any] struct {
	Data        *T
	Error       error
	FieldErrors map[string][]string
}

func (r Result[T]) OK() bool {
	return r.Error == nil
}

// FieldErrors maps a field key to its human readable messages.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Message joins all messages, ordered by field, with "; ".
func (fe FieldErrors) Message() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, fe[k]...)
	}
	return strings.Join(parts, "; ")
}

// Schema declares the expected shape T. A nil *Schema means "no shape declared".
type Schema[T any] struct {
	messages map[string]string
	refiners []func(*T, FieldErrors)
}

func Shape[T any]() *Schema[T] {
	return &Schema[T]{}
}

// Messages overrides validator messages. Keys are "<field>.<tag>", e.g. "name.max".
func (s *Schema[T]) Messages(m map[string]string) *Schema[T] {
	cp := *s
	cp.messages = make(map[string]string, len(s.messages)+len(m))
	for k, v := range s.messages {
		cp.messages[k] = v
	}
	for k, v := range m {
		cp.messages[k] = v
	}
	return &cp
}

// Refine adds a check that runs after tag validation succeeded.
func (s *Schema[T]) Refine(fn func(*T, FieldErrors)) *Schema[T] {
	cp := *s
	cp.refiners = append(append([]func(*T, FieldErrors){}, s.refiners...), fn)
	return &cp
}

func (s *Schema[T]) parse(values map[string][]string) Result[T] {
	var v T
	errs := FieldErrors{}
	if err := Decoder.Decode(&v, values); err != nil {
		decodeErrs, ok := err.(form.DecodeErrors)
		if !ok {
			return Result[T]{Error: ErrValidationFailed.WithMessage(err.Error())}
		}
		for key := range decodeErrs {
			errs.Add(key, key+" has an invalid value")
		}
	}
	if len(errs) == 0 {
		s.check(&v, errs)
	}
	if len(errs) > 0 {
		return Result[T]{
			Error:       ErrValidationFailed.WithMessage(errs.Message()),
			FieldErrors: errs,
		}
	}
	return Result[T]{Data: &v}
}

func (s *Schema[T]) check(v *T, errs FieldErrors) {
	if err := Validate.Struct(v); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			errs.Add("", err.Error())
			return
		}
		for _, fe := range verrs {
			errs.Add(fe.Field(), s.message(fe))
		}
		return
	}
	for _, refine := range s.refiners {
		refine(v, errs)
	}
}

func (s *Schema[T]) message(fe validator.FieldError) string {
	if msg, ok := s.messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fe.Translate(translator)
}
