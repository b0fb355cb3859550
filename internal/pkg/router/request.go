package router

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

const maxBodyBytes = 1 << 20 // 1MB

// Request wraps http.Request with helpers for inbound handlers.
type Request struct {
	*http.Request
}

// GetParam reads a path parameter from the request context (as stored by httprouter).
func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

// GetQuery returns a trimmed query parameter.
func (r *Request) GetQuery(key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// Decode fills dst from the request body. Form-encoded bodies
// (application/x-www-form-urlencoded or multipart/form-data) are mapped onto
// dst's json tags; anything else is decoded as JSON.
func (r *Request) Decode(dst any) error {
	if r == nil || r.Body == nil {
		return goerror.NewInvalidFormat()
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return r.DecodeForm(dst)
	default:
		return r.DecodeBody(dst)
	}
}

// DecodeBody decodes the JSON body into dst. Unknown fields and trailing
// data are rejected.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil {
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat()
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat()
	}

	return nil
}

// DecodeForm maps form fields onto dst through its json tags. Only the first
// value of each field is used.
func (r *Request) DecodeForm(dst any) error {
	if r == nil || r.Body == nil {
		return goerror.NewInvalidFormat()
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return goerror.NewInvalidFormat()
	}

	fields := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return goerror.NewInvalidFormat()
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return goerror.NewInvalidFormat()
	}

	return nil
}
