package decoration

import "testing"

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "/repo/a.txt", "/repo/a.txt"},
		{"double slash", "/repo//a.txt", "/repo/a.txt"},
		{"dot segment", "/repo/./src/../a.txt", "/repo/a.txt"},
		{"trailing slash", "/repo/dir/", "/repo/dir"},
		{"file uri", "file:///repo/a.txt", "/repo/a.txt"},
		{"file uri escaped", "file:///repo/a%20b.txt", "/repo/a b.txt"},
		{"file uri localhost", "file://localhost/repo/a.txt", "/repo/a.txt"},
		{"nfd to nfc", "/repo/cafe\u0301.txt", "/repo/caf\u00e9.txt"},
		{"relative", "src/main.go", "src/main.go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.in); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestKeyEquivalentSpellings(t *testing.T) {
	spellings := []string{
		"/repo/caf\u00e9/a.txt",
		"/repo/cafe\u0301/a.txt",
		"file:///repo/caf%C3%A9/a.txt",
		"/repo//cafe\u0301/./a.txt",
	}
	want := Key(spellings[0])
	for _, s := range spellings[1:] {
		if got := Key(s); got != want {
			t.Errorf("Key(%q) = %q, want %q", s, got, want)
		}
	}
}

func TestKeys(t *testing.T) {
	got := Keys([]string{"/a", "/b", "/a/", "file:///b", "/c"})
	want := []string{"/a", "/b", "/c"}
	if len(got) != len(want) {
		t.Fatalf("Keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		key, root string
		want      bool
	}{
		{"/repo/a.txt", "/repo", true},
		{"/repo", "/repo", true},
		{"/repo/sub/a.txt", "/repo/", true},
		{"/repository/a.txt", "/repo", false},
		{"/other/a.txt", "/repo", false},
		{"/a", "/", true},
		{"/a", "", false},
	}

	for _, tt := range tests {
		if got := Within(tt.key, tt.root); got != tt.want {
			t.Errorf("Within(%q, %q) = %v, want %v", tt.key, tt.root, got, tt.want)
		}
	}
}
