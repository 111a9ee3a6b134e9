package entities

import (
	"errors"
	"testing"

	"github.com/LeonardoBeccarini/cropwater/internal/simerr"
)

func soilFields(t *testing.T, err error) map[string]bool {
	t.Helper()
	var ve *simerr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	m := map[string]bool{}
	for _, f := range ve.Fields {
		m[f.Field] = true
	}
	return m
}

func TestValidateLayersStrictlyIncreasing(t *testing.T) {
	s := SoilProfile{Layers: []SoilLayer{
		{BottomCm: 60, ThetaFC: 0.3, ThetaWP: 0.1, ThetaIni: 0.2},
		{BottomCm: 30, ThetaFC: 0.3, ThetaWP: 0.1, ThetaIni: 0.2},
		{BottomCm: 30, ThetaFC: 0.3, ThetaWP: 0.1, ThetaIni: 0.2},
		{BottomCm: 150, ThetaFC: 0.3, ThetaWP: 0.1, ThetaIni: 0.2},
	}}
	got := soilFields(t, s.ValidateLayers())
	if !got["layers[1].bottom_depth"] || !got["layers[2].bottom_depth"] || got["layers[0].bottom_depth"] || got["layers[3].bottom_depth"] {
		t.Fatalf("fields = %v", got)
	}
}

func TestValidateLayersMoisture(t *testing.T) {
	s := SoilProfile{Layers: []SoilLayer{
		{BottomCm: 30, ThetaFC: 0.2, ThetaWP: 0.2, ThetaIni: 0.2},
		{BottomCm: 90, ThetaFC: 0.3, ThetaWP: 0.1, ThetaIni: 1.2},
	}}
	got := soilFields(t, s.ValidateLayers())
	if !got["layers[0]"] || !got["layers[1].initial_moisture"] || len(got) != 2 {
		t.Fatalf("fields = %v", got)
	}
	if err := (SoilProfile{}).ValidateLayers(); !soilFields(t, err)["layers"] {
		t.Fatalf("empty profile: %v", err)
	}
}

func TestValidateDepthAndCombined(t *testing.T) {
	s := SoilProfile{Layers: []SoilLayer{
		{BottomCm: 30, ThetaFC: 0.3, ThetaWP: 0.1, ThetaIni: 0.2},
		{BottomCm: 80, ThetaFC: 0.3, ThetaWP: 0.1, ThetaIni: 0.2},
	}}
	if err := s.ValidateDepth(0.8); err != nil {
		t.Fatalf("80 cm for 0.8 m: %v", err)
	}
	if !soilFields(t, s.ValidateDepth(1.5))["layers"] {
		t.Fatal("shallow profile accepted")
	}
	if err := (SoilProfile{}).ValidateDepth(1.5); err != nil {
		t.Fatalf("empty profile depth: %v", err)
	}

	s.Layers[1].ThetaIni = -1
	got := soilFields(t, s.Validate(1.5))
	if !got["layers"] || !got["layers[1].initial_moisture"] {
		t.Fatalf("fields = %v", got)
	}
}
