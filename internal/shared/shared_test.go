package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "tilde expansion", in: "~/mtap/config.toml", want: filepath.Join(home, "mtap/config.toml")},
		{name: "absolute path unchanged", in: "/etc/mtap/config.toml", want: "/etc/mtap/config.toml"},
		{name: "empty path unchanged", in: "", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.in); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateJSON(t *testing.T) {
	if err := ValidateJSON([]byte(`{"playlist_id":"1"}`)); err != nil {
		t.Errorf("expected valid JSON to pass, got %v", err)
	}

	if err := ValidateJSON([]byte(`not json`)); err == nil {
		t.Error("expected invalid JSON to fail")
	}
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()
	if a == "" || b == "" {
		t.Fatal("expected non-empty ids")
	}
	if a == b {
		t.Error("expected distinct ids across calls")
	}
}
