package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomID(t *testing.T) {
	id := GenerateRandomID("x_", 16)
	if !strings.HasPrefix(id, "x_") || len(id) != 18 {
		t.Fatalf("unexpected id %q", id)
	}
	for _, c := range id[2:] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("non-hex character %q in %q", c, id)
		}
	}
	if GenerateRandomHex(0) != "" {
		t.Error("zero length should produce empty string")
	}
}

func TestGenerateEntityIDs(t *testing.T) {
	cases := []struct {
		id     string
		prefix string
	}{
		{GenerateFlowID(), "f_"},
		{GenerateNodeID(), "n_"},
		{GenerateEdgeID(), "e_"},
		{GenerateOptionID(), "o_"},
	}
	for _, c := range cases {
		if !strings.HasPrefix(c.id, c.prefix) || len(c.id) != len(c.prefix)+24 {
			t.Errorf("id %q does not match prefix %q with 24 hex chars", c.id, c.prefix)
		}
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("FC_TEST_BOOL", "yes")
	if !ParseBoolEnv("FC_TEST_BOOL", false) {
		t.Error("yes should parse true")
	}
	t.Setenv("FC_TEST_BOOL", "off")
	if ParseBoolEnv("FC_TEST_BOOL", true) {
		t.Error("off should parse false")
	}
	t.Setenv("FC_TEST_BOOL", "maybe")
	if !ParseBoolEnv("FC_TEST_BOOL", true) {
		t.Error("invalid value should fall back to default")
	}
	if ParseBoolEnv("FC_TEST_BOOL_UNSET", false) {
		t.Error("unset should fall back to default")
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("FC_TEST_INT", " 42 ")
	if got := ParseIntEnv("FC_TEST_INT", 7); got != 42 {
		t.Errorf("ParseIntEnv = %d, want 42", got)
	}
	t.Setenv("FC_TEST_INT", "nan")
	if got := ParseIntEnv("FC_TEST_INT", 7); got != 7 {
		t.Errorf("invalid value should fall back to default, got %d", got)
	}
}
