package version

import "testing"

func TestShort(t *testing.T) {
	orig := Commit
	t.Cleanup(func() { Commit = orig })

	tests := []struct {
		commit string
		want   string
	}{
		{"unknown", "dev"},
		{"", "dev"},
		{"3f9c2ab", "dev+3f9c2ab"},
		{"3f9c2ab81e0d4c55", "dev+3f9c2ab"},
	}
	for _, tt := range tests {
		Commit = tt.commit
		if got := Short(); got != tt.want {
			t.Errorf("Short() with commit %q = %q, want %q", tt.commit, got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	if got := String(); got != "sqee dev (commit "+Commit+", built "+Date+")" {
		t.Errorf("unexpected build string %q", got)
	}
}
