package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks decode and validation failures. Its message is safe to
// return to the client.
type errBadRequest struct {
	msg string
}

func (e *errBadRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &errBadRequest{msg: fmt.Sprintf(format, args...)}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

func initValidator() {
	validateOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		translator, _ = uni.GetTranslator("en")

		validate = validator.New(validator.WithRequiredStructEnabled())

		// report json names, not Go field names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(validate, translator)

		_ = validate.RegisterTranslation("max", translator,
			func(ut ut.Translator) error {
				return ut.Add("max", "{0} must be at most {1}", true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				msg, _ := ut.T("max", fe.Field(), fe.Param())
				return msg
			},
		)
	})
}

// decodeJSON reads one JSON object into T and validates it. Unknown fields
// and trailing data are rejected.
func decodeJSON[T any](r *http.Request) (T, error) {
	var zero T
	initValidator()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var dst T
	if err := dec.Decode(&dst); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, badRequestf("empty body")
		}
		return zero, badRequestf("invalid request body")
	}
	if dec.More() {
		return zero, badRequestf("unexpected trailing data")
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return zero, badRequestf("%s", verrs[0].Translate(translator))
		}
		return zero, err
	}
	return dst, nil
}

// writeBindError answers a decodeJSON failure.
func writeBindError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var bad *errBadRequest
	if errors.As(err, &bad) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": bad.msg})
		return
	}
	log.Error().Err(err).Msg("validator internal error")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
