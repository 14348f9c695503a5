package typewiz

import "testing"

func TestFirstNonEmptyLine(t *testing.T) {
	if got := firstNonEmptyLine("\n\n1.1.350\ninstalled by pip\n"); got != "1.1.350" {
		t.Errorf("expected 1.1.350, got %q", got)
	}
}

func TestFirstNonEmptyLineAllBlank(t *testing.T) {
	if got := firstNonEmptyLine("\n \n"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestVersionCacheMemoizesAcrossCalls(t *testing.T) {
	c := newVersionCache()
	c.values["pyright"] = "1.1.350"
	v, err := c.ToolVersion(nil, "pyright")
	if err != nil {
		t.Fatalf("ToolVersion: %v", err)
	}
	if v != "1.1.350" {
		t.Errorf("expected memoized value, got %q", v)
	}
}
