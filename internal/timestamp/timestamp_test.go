package timestamp

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      time.Duration
		wantError bool
	}{
		{
			name:  "minutes and seconds",
			input: "1:30",
			want:  90 * time.Second,
		},
		{
			name:  "zero offset",
			input: "0:00",
			want:  0,
		},
		{
			name:  "padded minutes",
			input: "05:07",
			want:  5*time.Minute + 7*time.Second,
		},
		{
			name:  "hours minutes seconds",
			input: "01:01:01",
			want:  time.Hour + time.Minute + time.Second,
		},
		{
			name:  "last second of the day",
			input: "23:59:59",
			want:  23*time.Hour + 59*time.Minute + 59*time.Second,
		},
		{
			name:      "hours overflow",
			input:     "24:00:00",
			wantError: true,
		},
		{
			name:      "hours beyond a day",
			input:     "25:00:00",
			wantError: true,
		},
		{
			name:      "seconds overflow",
			input:     "1:60",
			wantError: true,
		},
		{
			name:      "minutes overflow",
			input:     "1:60:00",
			wantError: true,
		},
		{
			name:      "bare seconds",
			input:     "90",
			wantError: true,
		},
		{
			name:      "too many components",
			input:     "1:02:03:04",
			wantError: true,
		},
		{
			name:      "non-numeric component",
			input:     "1:ab",
			wantError: true,
		},
		{
			name:      "negative component",
			input:     "-1:30",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)

			if tt.wantError {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.input, got)
				}
				if !errors.Is(err, ErrFormat) {
					t.Errorf("Parse(%q) error = %v, want ErrFormat", tt.input, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("")
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("Parse(\"\") error = %v, want ErrEmpty", err)
	}
}

func TestParseOptional(t *testing.T) {
	d, ok, err := ParseOptional("")
	if err != nil {
		t.Fatalf("ParseOptional(\"\") unexpected error: %v", err)
	}
	if ok {
		t.Error("ParseOptional(\"\") ok = true, want false")
	}
	if d != 0 {
		t.Errorf("ParseOptional(\"\") = %v, want 0", d)
	}

	d, ok, err = ParseOptional("2:15")
	if err != nil {
		t.Fatalf("ParseOptional(\"2:15\") unexpected error: %v", err)
	}
	if !ok {
		t.Error("ParseOptional(\"2:15\") ok = false, want true")
	}
	if want := 2*time.Minute + 15*time.Second; d != want {
		t.Errorf("ParseOptional(\"2:15\") = %v, want %v", d, want)
	}

	if _, _, err := ParseOptional("1:99"); err == nil {
		t.Error("ParseOptional(\"1:99\") expected error, got nil")
	}
}
