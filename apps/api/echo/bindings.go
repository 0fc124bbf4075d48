package echoapi

import (
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/bytes"
	"github.com/pkg/errors"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
)

var (
	orderingParam = "ordering"
	fileField     = "file"

	// accepted by form fields holding a date; JSON bodies use RFC 3339
	formTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func isJSON(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// formData reads typed values out of a urlencoded or multipart form.
// Parse failures are collected and reported together by err().
type formData struct {
	values url.Values
	errs   []core.FieldError
}

func newFormData(ctx echo.Context) (*formData, error) {
	values, err := ctx.FormParams()
	if err != nil {
		return nil, core.NewValidationError(errors.Wrap(err, "parsing form"))
	}
	return &formData{values: values}, nil
}

func (f *formData) has(name string) bool {
	_, ok := f.values[name]
	return ok
}

func (f *formData) str(name string) string {
	return f.values.Get(name)
}

// optStr returns nil when the field is absent, so updates can tell "unset" from "cleared".
func (f *formData) optStr(name string) *string {
	if !f.has(name) {
		return nil
	}
	s := f.values.Get(name)
	return &s
}

func (f *formData) num(name string) int {
	s := core.CleanString(f.values.Get(name))
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f.errs = append(f.errs, core.FieldError{Field: name, Error: "a whole number is required"})
	}
	return n
}

func (f *formData) decimal(name string) *float64 {
	s := core.CleanString(f.values.Get(name))
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		f.errs = append(f.errs, core.FieldError{Field: name, Error: "a number is required"})
		return nil
	}
	return &n
}

func (f *formData) date(name string) *time.Time {
	s := core.CleanString(f.values.Get(name))
	if s == "" {
		return nil
	}
	for _, layout := range formTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	f.errs = append(f.errs, core.FieldError{Field: name, Error: "invalid date, use YYYY-MM-DDTHH:MM"})
	return nil
}

func (f *formData) err() error {
	if len(f.errs) == 0 {
		return nil
	}
	return core.NewValidationError(nil, f.errs...)
}

// bindUpload returns the file sent under field, or nil when the request carries none.
// The returned closer must be called once the upload has been consumed.
func bindUpload(ctx echo.Context, field string, maxSize int64) (*core.Upload, io.Closer, error) {
	if !isMultipart(ctx) {
		return nil, nil, nil
	}
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile {
			return nil, nil, nil
		}
		return nil, nil, core.NewValidationError(errors.Wrap(err, "reading upload"))
	}
	if maxSize > 0 && fh.Size > maxSize {
		return nil, nil, core.NewValidationError(nil, core.FieldError{
			Field: field,
			Error: fmt.Sprintf("file too large, the limit is %s", bytes.Format(maxSize)),
		})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening upload")
	}
	return &core.Upload{Name: filepath.Base(fh.Filename), Size: fh.Size, Content: f}, f, nil
}

// sendFile streams a stored file as an attachment.
func sendFile(ctx echo.Context, name string, rc io.ReadCloser) error {
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": name}),
	)
	return ctx.Stream(http.StatusOK, contentType, rc)
}

func closeUpload(ctx echo.Context, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		ctx.Logger().Warn(errors.Wrap(err, "closing upload"))
	}
}
