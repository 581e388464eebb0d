package validation

import (
	"mime"
	"net/http"
	"net/url"

	"github.com/gabriel-vasile/mimetype"

	"github.com/iota-uz/saaskit/pkg/serrors"
)

const (
	contentTypeURLEncoded = "application/x-www-form-urlencoded"
	contentTypeMultipart  = "multipart/form-data"

	maxMultipartMemory = 32 << 20
)

var ErrFileNotSupported = serrors.NewError(serrors.CodeFileNotSupported, "file uploads are not supported", "Errors.FileNotSupported")

type FormMode int

const (
	// Strict rejects any uploaded file with ErrFileNotSupported.
	Strict FormMode = iota
	// Permissive ignores uploaded files and validates the remaining values.
	Permissive
)

// Params validates route parameters such as mux.Vars(r).
func Params[T any](raw map[string]string, schema *Schema[T]) Result[T] {
	if schema == nil {
		return Result[T]{}
	}
	values := make(url.Values, len(raw))
	for k, v := range raw {
		values.Set(k, v)
	}
	return schema.parse(values)
}

// Query validates a query string. Repeated keys keep their last value.
func Query[T any](q url.Values, schema *Schema[T]) Result[T] {
	if schema == nil {
		return Result[T]{}
	}
	return schema.parse(flatten(q))
}

func flatten(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			out.Set(k, vs[len(vs)-1])
		}
	}
	return out
}

// Form validates a urlencoded or multipart body. Any other content type yields
// an empty Result, as does a nil schema.
func Form[T any](r *http.Request, schema *Schema[T], mode FormMode) Result[T] {
	if schema == nil {
		return Result[T]{}
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return Result[T]{}
	}
	switch mediaType {
	case contentTypeURLEncoded:
		if err := r.ParseForm(); err != nil {
			return Result[T]{Error: ErrValidationFailed.WithMessage("failed to parse form data: " + err.Error()), FieldErrors: FieldErrors{}}
		}
		return schema.parse(flatten(r.PostForm))
	case contentTypeMultipart:
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return Result[T]{Error: ErrValidationFailed.WithMessage("failed to parse form data: " + err.Error()), FieldErrors: FieldErrors{}}
		}
		if mode == Strict && r.MultipartForm != nil && len(r.MultipartForm.File) > 0 {
			return fileRejected[T](r)
		}
		return schema.parse(flatten(r.MultipartForm.Value))
	default:
		return Result[T]{}
	}
}

func fileRejected[T any](r *http.Request) Result[T] {
	errs := FieldErrors{}
	for field, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			kind := "unknown"
			if f, err := fh.Open(); err == nil {
				if mt, err := mimetype.DetectReader(f); err == nil {
					kind = mt.String()
				}
				_ = f.Close()
			}
			errs.Add(field, "file uploads are not supported ("+kind+")")
		}
	}
	return Result[T]{Error: ErrFileNotSupported, FieldErrors: errs}
}
