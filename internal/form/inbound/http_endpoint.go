package inbound

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docker/go-units"
	"github.com/samber/lo"
	"github.com/shandysiswandi/inboxed/internal/form/entity"
	"github.com/shandysiswandi/inboxed/internal/form/usecase"
	"github.com/shandysiswandi/inboxed/internal/pkg/goerror"
	"github.com/shandysiswandi/inboxed/internal/pkg/router"
	"github.com/shandysiswandi/inboxed/internal/pkg/upload"
	"github.com/shandysiswandi/inboxed/internal/pkg/validator"
	"github.com/shandysiswandi/inboxed/internal/pkg/valueobject"
)

type HTTPEndpoint struct {
	uc     uc
	upload parser
}

// Submit relays a form submission by email.
// @Summary Submit form
// @Description Accepts a JSON or multipart form submission and forwards it to the configured inbox.
// @Tags Form
// @Accept json,mpfd
// @Produce json
// @Param request body SubmitRequest true "Form submission"
// @Success 200 {object} SubmitResponse "Form submitted"
// @Failure 400 {object} router.errorResponse "Bot detected, invalid body or invalid data"
// @Failure 413 {object} router.errorResponse "Upload too large"
// @Failure 429 {object} router.errorResponse "Too many requests"
// @Failure 500 {object} router.errorResponse "Failed to send email"
// @Router /api/form/submit [post]
func (h *HTTPEndpoint) Submit(r *router.Request) (any, error) {
	var (
		in  usecase.SubmitInput
		err error
	)
	if r.IsMultipart() {
		in, err = h.decodeMultipart(r)
	} else {
		in, err = h.decodeJSON(r)
	}
	if err != nil {
		return nil, err
	}

	in.ClientIP = r.RemoteAddr
	in.UserAgent = r.UserAgent()

	if _, err := h.uc.Submit(r.Context(), in); err != nil {
		return nil, err
	}

	return SubmitResponse{Success: true, Message: "Form submitted"}, nil
}

func (h *HTTPEndpoint) decodeJSON(r *router.Request) (usecase.SubmitInput, error) {
	var req SubmitRequest
	if err := r.DecodeBody(&req); err != nil {
		return usecase.SubmitInput{}, err
	}

	in := usecase.SubmitInput{Data: req.Data}
	for _, f := range []struct {
		name string
		val  valueobject.JSON
		dst  *string
	}{
		{"tenant", req.Tenant, &in.Tenant},
		{"formId", req.FormID, &in.FormID},
		{"name", req.Name, &in.Name},
		{"email", req.Email, &in.Email},
		{"message", req.Message, &in.Message},
	} {
		s, ok := f.val.AsString()
		if !ok {
			in.FieldErrors = append(in.FieldErrors, validator.FieldError{
				Field:   f.name,
				Rule:    "string",
				Message: fmt.Sprintf("%s must be a string, got %s", f.name, f.val.Kind()),
			})
			continue
		}
		*f.dst = s
	}

	// Any non-string honeypot value other than null counts as filled.
	if website, ok := req.Website.AsString(); ok {
		in.Website = website
	} else if req.Website.Kind() != valueobject.KindNull {
		raw, err := req.Website.MarshalJSON()
		if err != nil {
			return usecase.SubmitInput{}, goerror.NewInvalidFormat()
		}
		in.Website = string(raw)
	}

	return in, nil
}

func (h *HTTPEndpoint) decodeMultipart(r *router.Request) (usecase.SubmitInput, error) {
	form, err := h.upload.Parse(r.Request)
	if err != nil {
		return usecase.SubmitInput{}, h.uploadError(err)
	}

	in := usecase.SubmitInput{
		Tenant:  form.Get("tenant"),
		FormID:  form.Get("formId"),
		Name:    form.Get("name"),
		Email:   form.Get("email"),
		Message: form.Get("message"),
		Website: form.Get("website"),
		Attachments: lo.Map(form.Files, func(f upload.File, _ int) entity.UploadedFile {
			return entity.UploadedFile{
				TemporaryPath: f.Path,
				OriginalName:  f.OriginalName,
				MimeType:      f.MimeType,
				SizeBytes:     f.Size,
			}
		}),
	}
	if form.Has("data") {
		in.Data = valueobject.String(form.Get("data"))
	}

	return in, nil
}

func (h *HTTPEndpoint) uploadError(err error) error {
	cfg := h.upload.Config()

	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		return goerror.NewBusiness("File too large", goerror.CodePayloadTooLarge,
			"Maximum file size is "+units.BytesSize(float64(cfg.MaxFileSize)))
	case errors.Is(err, upload.ErrTooManyFiles):
		return goerror.NewBusiness("Too many files", goerror.CodeInvalidFormat,
			fmt.Sprintf("Maximum %d files allowed", cfg.MaxFiles))
	case errors.Is(err, upload.ErrInvalidFileType):
		return goerror.NewBusiness("Invalid file type", goerror.CodeInvalidFormat,
			"Allowed types: "+strings.Join(cfg.AllowedTypes, ", "))
	case errors.Is(err, upload.ErrUnexpectedField):
		return goerror.NewBusiness("Unexpected file field", goerror.CodeInvalidFormat,
			fmt.Sprintf("Files must be uploaded in the %q field", cfg.FileField))
	case errors.Is(err, upload.ErrTooManyFields):
		return goerror.NewBusiness("Too many fields", goerror.CodePayloadTooLarge,
			fmt.Sprintf("Maximum %d fields allowed", cfg.MaxFields))
	case errors.Is(err, upload.ErrFieldTooLarge):
		return goerror.NewBusiness("Field too large", goerror.CodePayloadTooLarge,
			"Maximum field size is "+units.BytesSize(float64(cfg.MaxFieldSize)))
	case errors.Is(err, upload.ErrMalformed), errors.Is(err, upload.ErrNotMultipart):
		return goerror.NewInvalidFormat()
	default:
		return goerror.NewServer(err)
	}
}
