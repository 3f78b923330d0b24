package upload

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
)

var (
	// ErrNotMultipart is returned for requests without a multipart body.
	ErrNotMultipart = errors.New("upload: request is not multipart/form-data")
	// ErrMalformed is returned when the multipart stream cannot be read.
	ErrMalformed = errors.New("upload: malformed multipart body")
	// ErrFileTooLarge is returned when a file exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("upload: file too large")
	// ErrTooManyFiles is returned when more than MaxFiles files are sent.
	ErrTooManyFiles = errors.New("upload: too many files")
	// ErrInvalidFileType is returned when a file type is not allowed.
	ErrInvalidFileType = errors.New("upload: invalid file type")
	// ErrUnexpectedField is returned for a file part outside FileField.
	ErrUnexpectedField = errors.New("upload: unexpected file field")
	// ErrTooManyFields is returned when more than MaxFields text fields are sent.
	ErrTooManyFields = errors.New("upload: too many fields")
	// ErrFieldTooLarge is returned when a text field exceeds MaxFieldSize.
	ErrFieldTooLarge = errors.New("upload: field too large")
)

const sniffLen = 3072

// Config bounds what a Parser accepts.
type Config struct {
	// Dir receives uploaded files. It is created if missing.
	Dir string
	// MaxFileSize is the per-file limit in bytes.
	MaxFileSize int64
	// MaxFiles is the number of files accepted per request.
	MaxFiles int
	// AllowedTypes lists accepted media types, e.g. "image/png".
	AllowedTypes []string
	// FileField is the only form field allowed to carry files.
	FileField string
	// MaxFields caps the number of text fields. Zero means no cap.
	MaxFields int
	// MaxFieldSize caps one text field in bytes. Zero means no cap.
	MaxFieldSize int64
	// SniffContent rejects files whose content does not match their declared type.
	SniffContent bool
}

// File is one stored upload.
type File struct {
	Path         string
	OriginalName string
	MimeType     string
	Size         int64
}

// Form is a parsed multipart request.
type Form struct {
	values map[string]string
	Files  []File
}

// Get returns the first value sent for a text field.
func (f *Form) Get(key string) string {
	return f.values[key]
}

// Has reports whether a text field was sent at all.
func (f *Form) Has(key string) bool {
	_, ok := f.values[key]
	return ok
}

// Parser parses multipart requests under a fixed Config.
type Parser struct {
	cfg     Config
	allowed map[string]struct{}
}

// New validates cfg, creates the upload directory and returns a Parser.
func New(cfg Config) (*Parser, error) {
	if cfg.Dir == "" || cfg.MaxFileSize <= 0 || cfg.MaxFiles <= 0 {
		return nil, errors.New("upload: dir, max file size and max files are required")
	}
	if cfg.FileField == "" {
		cfg.FileField = "attachments"
	}
	cfg.AllowedTypes = lo.Uniq(lo.FilterMap(cfg.AllowedTypes, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		return t, t != ""
	}))

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("upload: create dir: %w", err)
	}

	return &Parser{cfg: cfg, allowed: lo.Keyify(cfg.AllowedTypes)}, nil
}

// Config returns the limits the parser enforces.
func (p *Parser) Config() Config {
	return p.cfg
}

// Parse reads the whole multipart body of r.
func (p *Parser) Parse(r *http.Request) (_ *Form, err error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}

	form := &Form{values: make(map[string]string)}
	defer func() {
		if err != nil {
			p.discard(form.Files)
		}
	}()

	fields := 0
	for {
		part, errPart := mr.NextPart()
		if errors.Is(errPart, io.EOF) {
			return form, nil
		}
		if errPart != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, errPart)
		}

		if part.FileName() == "" {
			fields++
			if p.cfg.MaxFields > 0 && fields > p.cfg.MaxFields {
				return nil, ErrTooManyFields
			}
			value, errField := p.readField(part)
			if errField != nil {
				return nil, errField
			}
			if _, dup := form.values[part.FormName()]; !dup {
				form.values[part.FormName()] = value
			}
			continue
		}

		if part.FormName() != p.cfg.FileField {
			return nil, fmt.Errorf("%w: %q", ErrUnexpectedField, part.FormName())
		}
		if len(form.Files) >= p.cfg.MaxFiles {
			return nil, ErrTooManyFiles
		}

		file, errSave := p.save(part)
		if errSave != nil {
			return nil, errSave
		}
		form.Files = append(form.Files, file)
	}
}

func (p *Parser) readField(part io.Reader) (string, error) {
	src := part
	if p.cfg.MaxFieldSize > 0 {
		src = io.LimitReader(part, p.cfg.MaxFieldSize+1)
	}

	b, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.cfg.MaxFieldSize > 0 && int64(len(b)) > p.cfg.MaxFieldSize {
		return "", ErrFieldTooLarge
	}

	return string(b), nil
}

func (p *Parser) save(part *multipart.Part) (File, error) {
	declared, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
	declared = strings.ToLower(declared)
	if _, ok := p.allowed[declared]; err != nil || !ok {
		return File{}, fmt.Errorf("%w: %q", ErrInvalidFileType, declared)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(part, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return File{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	head = head[:n]

	if p.cfg.SniffContent {
		if detected := mimetype.Detect(head); !detected.Is(declared) {
			return File{}, fmt.Errorf("%w: declared %q, content is %q", ErrInvalidFileType, declared, detected.String())
		}
	}

	name, err := randomName()
	if err != nil {
		return File{}, err
	}
	path := filepath.Join(p.cfg.Dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return File{}, fmt.Errorf("upload: create file: %w", err)
	}

	size, err := io.Copy(f, io.LimitReader(io.MultiReader(bytes.NewReader(head), part), p.cfg.MaxFileSize+1))
	errClose := f.Close()

	switch {
	case err != nil:
		err = fmt.Errorf("%w: %v", ErrMalformed, err)
	case errClose != nil:
		err = fmt.Errorf("upload: close file: %w", errClose)
	case size > p.cfg.MaxFileSize:
		err = ErrFileTooLarge
	}
	if err != nil {
		p.discard([]File{{Path: path}})
		return File{}, err
	}

	return File{
		Path:         path,
		OriginalName: part.FileName(),
		MimeType:     declared,
		Size:         size,
	}, nil
}

func (p *Parser) discard(files []File) {
	for _, f := range files {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove rejected upload", "path", f.Path, "error", err)
		}
	}
}

func randomName() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("upload: random name: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
