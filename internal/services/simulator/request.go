package simulator

import (
	"github.com/LeonardoBeccarini/cropwater/internal/catalog"
	"github.com/LeonardoBeccarini/cropwater/internal/fao56"
	"github.com/LeonardoBeccarini/cropwater/internal/irrigation"
	"github.com/LeonardoBeccarini/cropwater/internal/model/entities"
)

// Request is one simulation call as received over HTTP or MQTT.
// It is decoded once and passed by value; nothing in it is shared.
type Request struct {
	RunID      string               `json:"run_id,omitempty"`
	FieldID    string               `json:"field_id,omitempty"`
	Crop       CropInput            `json:"crop"`
	Planting   string               `json:"planting_date"`
	Maturity   string               `json:"maturity_date"`
	Soil       entities.SoilProfile `json:"soil"`
	Weather    WeatherInput         `json:"weather"`
	Irrigation irrigation.Raw       `json:"irrigation"`
	Options    Options              `json:"options"`
}

// CropInput names a catalog crop; any set field overrides the catalog value.
type CropInput struct {
	Name string `json:"name"`
	catalog.Override
}

type WeatherInput struct {
	Source     string                  `json:"source"` // inline | cache | gridmet | agrimet
	Latitude   float64                 `json:"latitude"`
	Longitude  float64                 `json:"longitude"`
	Elevation  float64                 `json:"elevation"`
	WindHeight float64                 `json:"wind_height"`
	Records    []entities.DailyWeather `json:"weather_data,omitempty"`
}

type Options struct {
	AdjustStages   bool            `json:"adjust_stages"`
	AdjustKcb      bool            `json:"adjust_kcb"`
	AdjustP        bool            `json:"adjust_p"`
	SimulateRunoff *bool           `json:"simulate_runoff,omitempty"` // default true
	Thermal        *ThermalOptions `json:"thermal,omitempty"`
}

func (o Options) runoff() bool { return o.SimulateRunoff == nil || *o.SimulateRunoff }

// ThermalOptions closes the season on a growing-degree-day target instead
// of the maturity date, which then only bounds the search.
type ThermalOptions struct {
	TBase   float64         `json:"t_base"`
	TCutoff float64         `json:"t_cutoff"`
	Target  float64         `json:"target"`
	Method  fao56.GDDMethod `json:"method"`
}
