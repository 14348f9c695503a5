package typewiz

import "testing"

func TestParseSeverityCoercesUnknownToInformation(t *testing.T) {
	cases := map[string]Severity{
		"error":     SeverityError,
		"ERROR":     SeverityError,
		" warning ": SeverityWarning,
		"warn":      SeverityWarning,
		"note":      SeverityInformation,
		"":          SeverityInformation,
		"hint":      SeverityInformation,
	}
	for input, want := range cases {
		if got := ParseSeverity(input); got != want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseModeAcceptsFullAsTargetAlias(t *testing.T) {
	tests := []struct {
		input string
		want  Mode
		ok    bool
	}{
		{"current", ModeCurrent, true},
		{"CURRENT", ModeCurrent, true},
		{"target", ModeTarget, true},
		{"full", ModeTarget, true},
		{"FULL", ModeTarget, true},
		{"bogus", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMode(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseMode(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNewRunIdFormat(t *testing.T) {
	if got := NewRunId("pyright", ModeCurrent); got != "pyright:current" {
		t.Errorf("NewRunId() = %q, want %q", got, "pyright:current")
	}
}
