package ubpath

import "testing"

func TestNormalizeRoot(t *testing.T) {
	result, err := Normalize("/")
	if err != nil {
		t.Fatal("normalize failed:", err)
	}
	if result != "/" {
		t.Errorf("normalize(\"/\") = %q, want \"/\"", result)
	}
}

func TestNormalizeDotDot(t *testing.T) {
	result, err := Normalize("/a/./b/../c/")
	if err != nil {
		t.Fatal("normalize failed:", err)
	}
	if result != "/a/c" {
		t.Errorf("normalize result = %q, want /a/c", result)
	}
}

func TestNormalizeDoubleSeparator(t *testing.T) {
	result, err := Normalize("/a//b")
	if err != nil {
		t.Fatal("normalize failed:", err)
	}
	if result != "/a/b" {
		t.Errorf("normalize result = %q, want /a/b", result)
	}
}

func TestNormalizeEscapeRoot(t *testing.T) {
	result, err := Normalize("/../../etc")
	if err != nil {
		t.Fatal("normalize failed:", err)
	}
	if result != "/etc" {
		t.Errorf("normalize result = %q, want /etc (escaping root clamps at /)", result)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	cases := []string{"/", "/a/./b/../c/", "/a//b", "relative/path"}
	for _, c := range cases {
		once, err := Normalize(c)
		if err != nil {
			t.Fatalf("normalize(%q) failed: %v", c, err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatalf("normalize(%q) failed: %v", once, err)
		}
		if once != twice {
			t.Errorf("normalize not idempotent for %q: %q != %q", c, once, twice)
		}
	}
}

func TestNormalizeTrailingSlashStripped(t *testing.T) {
	result, err := Normalize("/a/b/")
	if err != nil {
		t.Fatal("normalize failed:", err)
	}
	if result != "/a/b" {
		t.Errorf("normalize result = %q, want /a/b", result)
	}
}

func TestRelativeToRoot(t *testing.T) {
	relative, err := RelativeTo("/", "/a/b")
	if err != nil {
		t.Fatal("relativeTo failed:", err)
	}
	if relative != "/a/b" {
		t.Errorf("relativeTo = %q, want /a/b", relative)
	}
}

func TestRelativeToPrefix(t *testing.T) {
	relative, err := RelativeTo("/srv/backup", "/srv/backup/etc/hosts")
	if err != nil {
		t.Fatal("relativeTo failed:", err)
	}
	if relative != "/etc/hosts" {
		t.Errorf("relativeTo = %q, want /etc/hosts", relative)
	}
}

func TestRelativeToMismatch(t *testing.T) {
	if _, err := RelativeTo("/srv/backup", "/srv/backup2/etc"); err == nil {
		t.Error("expected error for mismatched root prefix")
	}
	if _, err := RelativeTo("/srv/backup", "/other/path"); err == nil {
		t.Error("expected error for unrelated path")
	}
}

func TestNormalizeTooLong(t *testing.T) {
	long := "/"
	for i := 0; i < 5000; i++ {
		long += "a"
	}
	if _, err := Normalize(long); err == nil {
		t.Error("expected failure for over-long normalized path")
	}
}
