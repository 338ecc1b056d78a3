package messages

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultCatalogComplete(t *testing.T) {
	c := Default()

	v := reflect.ValueOf(*c)
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).String() == "" {
			t.Errorf("default catalog missing %s", v.Type().Field(i).Name)
		}
	}
}

func TestLoadOverridesSomeKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	if err := os.WriteFile(path, []byte("paid_button: \"Paid\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if c.PaidButton != "Paid" {
		t.Errorf("expected override, got %q", c.PaidButton)
	}
	if c.Welcome != Default().Welcome {
		t.Error("keys missing from the override should keep defaults")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		text string
		kv   []any
		want string
	}{
		{"Фото получено ✅ ({count})", []any{"count", 3}, "Фото получено ✅ (3)"},
		{"{price} / {price}", []any{"price", "3000 ₽"}, "3000 ₽ / 3000 ₽"},
		{"no placeholders", nil, "no placeholders"},
		{"{unknown} stays", []any{"count", 1}, "{unknown} stays"},
	}

	for _, tt := range tests {
		if got := Format(tt.text, tt.kv...); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
