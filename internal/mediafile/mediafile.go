// Package mediafile loads caller-uploaded image/PDF source documents from
// temporary blob storage and validates them before any extraction cost is
// spent.
package mediafile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/snapdish/snapdish/internal/objectstore"
	"github.com/snapdish/snapdish/internal/source"
)

const (
	// minBytes rejects clearly-too-small payloads before extraction.
	minBytes = 1 << 10 // 1 KB
	maxBytes = 20 << 20
	// minPDFTextChars is the threshold below which a PDF's text layer is
	// considered unusable and the raw bytes go to the vision call instead.
	minPDFTextChars = 200

	magicNumberSeek = 512
)

var (
	ErrSingleFileOnly  = errors.New("mediafile: exactly one uploaded file per import")
	ErrTooSmall        = errors.New("mediafile: uploaded file is empty or too small")
	ErrTooLarge        = errors.New("mediafile: uploaded file exceeds size limit")
	ErrUnsupportedType = errors.New("mediafile: unsupported file type")
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// File is a validated uploaded source document.
type File struct {
	Key      string
	Data     []byte
	MimeType string
	// Text is the PDF text layer when one was extractable; extraction then
	// runs as a text call instead of a vision call.
	Text string
}

type Loader struct {
	store  objectstore.Store
	bucket string
}

func NewLoader(store objectstore.Store, uploadsBucket string) *Loader {
	return &Loader{store: store, bucket: uploadsBucket}
}

// Load downloads the single uploaded file and validates it for the declared
// source kind. Multi-file combination is not supported.
func (l *Loader) Load(ctx context.Context, keys []string, kind source.Kind) (*File, error) {
	if len(keys) != 1 {
		return nil, ErrSingleFileOnly
	}
	key := keys[0]

	data, declaredType, err := l.store.Get(ctx, l.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("mediafile: downloading upload %q: %w", key, err)
	}
	if len(data) < minBytes {
		return nil, ErrTooSmall
	}
	if len(data) > maxBytes {
		return nil, ErrTooLarge
	}

	mimeType := http.DetectContentType(data[:min(len(data), magicNumberSeek)])
	if mimeType == "application/octet-stream" && declaredType != "" {
		mimeType = declaredType
	}

	f := &File{Key: key, Data: data, MimeType: mimeType}
	switch kind {
	case source.KindImage:
		if !allowedImageTypes[mimeType] {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, mimeType)
		}
	case source.KindPDF:
		if mimeType != "application/pdf" {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, mimeType)
		}
		f.Text = extractPDFText(data)
	default:
		return nil, fmt.Errorf("mediafile: source kind %q does not use uploads", kind)
	}

	return f, nil
}

// Delete removes the temporary upload after processing.
func (l *Loader) Delete(ctx context.Context, key string) error {
	return l.store.Delete(ctx, l.bucket, key)
}

// extractPDFText pulls the text layer out of a PDF. Scanned documents yield
// little or no text; those return "" so the caller falls through to the
// vision path.
func extractPDFText(data []byte) string {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}

	text := strings.TrimSpace(b.String())
	if len(text) < minPDFTextChars {
		return ""
	}
	return text
}
