package scope

import "testing"

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"read", "write", "admin"} {
		if err := r.Register(name); err != nil {
			t.Fatalf("register %q: %v", name, err)
		}
	}
	if err := r.Register("read"); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := r.Register("bad scope"); err == nil {
		t.Fatal("expected whitespace scope name to fail")
	}

	r.Freeze()
	if err := r.Register("late"); err == nil {
		t.Fatal("expected registration after freeze to fail")
	}

	if !r.Has("write") || r.Has("late") {
		t.Fatal("unexpected registry contents")
	}
	if r.Count() != 3 {
		t.Fatalf("count = %d", r.Count())
	}
}

func TestValidateRequested(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("read")
	_ = r.Register("write")
	r.Freeze()

	if err := r.ValidateRequested("read write"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.ValidateRequested(""); err != nil {
		t.Fatalf("empty request must validate: %v", err)
	}
	if err := r.ValidateRequested("read delete"); err == nil {
		t.Fatal("expected unknown scope to fail")
	}
}

func TestParseCanonicalizes(t *testing.T) {
	got := Parse("write  read write\tread")
	if len(got) != 2 || got[0] != "read" || got[1] != "write" {
		t.Fatalf("Parse = %v", got)
	}
	if Parse("   ") != nil {
		t.Fatal("blank string must parse to nil")
	}
}

func TestIsSubset(t *testing.T) {
	cases := []struct {
		sub, super string
		want       bool
	}{
		{"read", "read write", true},
		{"read write", "read write", true},
		{"", "read", true},
		{"write", "read", false},
		{"read admin", "read write", false},
	}
	for _, c := range cases {
		if got := IsSubset(c.sub, c.super); got != c.want {
			t.Fatalf("IsSubset(%q, %q) = %v, want %v", c.sub, c.super, got, c.want)
		}
	}
}
