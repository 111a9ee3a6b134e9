package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if n := len(c.Names()); n != 13 {
		t.Fatalf("got %d crops", n)
	}
	m, err := c.Lookup("Maize")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if m.KcbMid != 1.20 || m.Stages.Total() != 160 || m.ZrMax != 1.5 || m.CN2 != 76 {
		t.Fatalf("maize = %+v", m)
	}
	if _, err := c.Lookup("onions dry"); err != nil {
		t.Fatalf("spaces should map to underscores: %v", err)
	}
}

func TestLookupSuggestsClosestName(t *testing.T) {
	_, err := Default().Lookup("tomatoe")
	var ve *simerr.ValidationError
	if !errors.As(err, &ve) || !strings.Contains(err.Error(), `did you mean "tomato"`) {
		t.Fatalf("got %v", err)
	}
	_, err = Default().Lookup("sugarcane")
	if !errors.As(err, &ve) || strings.Contains(err.Error(), "did you mean") {
		t.Fatalf("far name should not get a suggestion: %v", err)
	}
}

func TestParseRejectsInvalidProfile(t *testing.T) {
	_, err := Parse(strings.NewReader("- name: bad\n  kcb_mid: 1\n  stages: {l_ini: 1, l_dev: 1, l_mid: 1, l_end: 1}\n  h_max: 1\n  zr_max: 1\n  p: 1.5\n  cn2: 70\n"))
	if err == nil || !strings.Contains(err.Error(), "p:") {
		t.Fatalf("got %v", err)
	}
}

func TestOverrideApply(t *testing.T) {
	base, _ := Default().Lookup("wheat")
	mid, p := 1.0, 0.55
	got := Override{KcbMid: &mid, P: &p}.Apply(base)
	if got.KcbMid != 1.0 || got.P != 0.55 || got.KcbEnd != base.KcbEnd || got.Stages != base.Stages {
		t.Fatalf("got %+v", got)
	}
}
