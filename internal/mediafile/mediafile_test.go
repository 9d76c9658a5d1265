package mediafile

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/snapdish/snapdish/internal/source"
)

type fakeStore struct {
	objects map[string][]byte
	types   map[string]string
	deleted []string
}

func (f *fakeStore) Get(_ context.Context, _ string, key string) ([]byte, string, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, "", errors.New("object not found")
	}
	return data, f.types[key], nil
}

func (f *fakeStore) Put(_ context.Context, _ string, key string, data []byte, _ string) error {
	f.objects[key] = data
	return nil
}

func (f *fakeStore) Delete(_ context.Context, _ string, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func jpegBytes(size int) []byte {
	data := bytes.Repeat([]byte{0x00}, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return data
}

func pdfBytes(size int) []byte {
	data := bytes.Repeat([]byte{0x20}, size)
	copy(data, []byte("%PDF-1.4"))
	return data
}

func newTestLoader(objects map[string][]byte) (*Loader, *fakeStore) {
	store := &fakeStore{objects: objects, types: map[string]string{}}
	return NewLoader(store, "uploads"), store
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		keys      []string
		kind      source.Kind
		objects   map[string][]byte
		wantError error
		wantMIME  string
	}{
		{
			name:     "valid jpeg image",
			keys:     []string{"a.jpg"},
			kind:     source.KindImage,
			objects:  map[string][]byte{"a.jpg": jpegBytes(4 << 10)},
			wantMIME: "image/jpeg",
		},
		{
			name:     "valid pdf",
			keys:     []string{"a.pdf"},
			kind:     source.KindPDF,
			objects:  map[string][]byte{"a.pdf": pdfBytes(4 << 10)},
			wantMIME: "application/pdf",
		},
		{
			name:      "no files",
			keys:      nil,
			kind:      source.KindImage,
			objects:   map[string][]byte{},
			wantError: ErrSingleFileOnly,
		},
		{
			name:      "multiple files",
			keys:      []string{"a.jpg", "b.jpg"},
			kind:      source.KindImage,
			objects:   map[string][]byte{},
			wantError: ErrSingleFileOnly,
		},
		{
			name:      "file below minimum size",
			keys:      []string{"a.jpg"},
			kind:      source.KindImage,
			objects:   map[string][]byte{"a.jpg": jpegBytes(100)},
			wantError: ErrTooSmall,
		},
		{
			name:      "file above maximum size",
			keys:      []string{"a.jpg"},
			kind:      source.KindImage,
			objects:   map[string][]byte{"a.jpg": jpegBytes(maxBytes + 1)},
			wantError: ErrTooLarge,
		},
		{
			name:      "text file declared as image",
			keys:      []string{"a.txt"},
			kind:      source.KindImage,
			objects:   map[string][]byte{"a.txt": bytes.Repeat([]byte("hello "), 1024)},
			wantError: ErrUnsupportedType,
		},
		{
			name:      "jpeg declared as pdf",
			keys:      []string{"a.jpg"},
			kind:      source.KindPDF,
			objects:   map[string][]byte{"a.jpg": jpegBytes(4 << 10)},
			wantError: ErrUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, _ := newTestLoader(tt.objects)

			file, err := loader.Load(context.Background(), tt.keys, tt.kind)

			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Fatalf("Load() error = %v, want %v", err, tt.wantError)
				}
				return
			}

			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if file.MimeType != tt.wantMIME {
				t.Errorf("mime type = %q, want %q", file.MimeType, tt.wantMIME)
			}
			if file.Key != tt.keys[0] {
				t.Errorf("key = %q, want %q", file.Key, tt.keys[0])
			}
		})
	}
}

func TestLoadPDFWithoutTextLayer(t *testing.T) {
	// Not parseable as a PDF document, so no text layer is extracted and the
	// caller falls through to the vision path.
	loader, _ := newTestLoader(map[string][]byte{"scan.pdf": pdfBytes(4 << 10)})

	file, err := loader.Load(context.Background(), []string{"scan.pdf"}, source.KindPDF)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if file.Text != "" {
		t.Errorf("text = %q, want empty for a scan", file.Text)
	}
}

func TestDelete(t *testing.T) {
	loader, store := newTestLoader(map[string][]byte{"a.jpg": jpegBytes(4 << 10)})

	if err := loader.Delete(context.Background(), "a.jpg"); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "a.jpg" {
		t.Errorf("deleted = %v", store.deleted)
	}
}
