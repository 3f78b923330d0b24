package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/docker/go-units"
	"github.com/shandysiswandi/inboxed/internal/pkg/goerror"
)

// Request wraps http.Request with helpers for inbound handlers.
type Request struct {
	// Request is the underlying http.Request.
	*http.Request

	maxBody int64
}

// IsMultipart reports whether the body is multipart/form-data.
func (r *Request) IsMultipart() bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// DecodeBody decodes a single JSON value from the body into dst.
//
// Unknown fields are ignored. Bodies over app.server.max_json_bytes are
// rejected with a payload-too-large error.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil {
		return goerror.NewInvalidFormat()
	}

	src := io.Reader(r.Body)
	if r.maxBody > 0 {
		src = io.LimitReader(r.Body, r.maxBody+1)
	}

	body, err := io.ReadAll(src)
	if err != nil {
		return goerror.NewInvalidFormat()
	}
	if r.maxBody > 0 && int64(len(body)) > r.maxBody {
		return goerror.NewBusiness("Request body too large", goerror.CodePayloadTooLarge,
			"Maximum body size is "+units.BytesSize(float64(r.maxBody)))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat()
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat()
	}

	return nil
}
