package weather

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// localUTCOffset is the station's fixed offset from UTC, used only for the
// human-readable local time in log output.
const localUTCOffset = -7 * time.Hour

const sampleTimeLayout = "2006-01-02T15:04:05.999999999"

// Observation is one current-conditions report from the cloud weather feed.
// WindDirection is a pointer because the feed omits the heading in calm air.
type Observation struct {
	ConditionCode string          `json:"conditionCode"`
	Temperature   float64         `json:"temperature"`
	Humidity      float64         `json:"humidity"`
	WindSpeed     float64         `json:"windSpeed"`
	WindGust      float64         `json:"windGust"`
	WindDirection *float64        `json:"windDirection,omitempty"`
	Daylight      bool            `json:"daylight"`
	Metadata      ObservationMeta `json:"metadata"`
}

type ObservationMeta struct {
	ReadTime string `json:"readTime"`
}

// DecodeObservation parses a raw feed payload.
func DecodeObservation(payload []byte) (Observation, error) {
	var obs Observation
	if err := json.Unmarshal(payload, &obs); err != nil {
		return Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	return obs, nil
}

// Equal reports whether two observations carry the same values field by
// field. A nil wind heading only equals another nil heading.
func (o Observation) Equal(other Observation) bool {
	if o.ConditionCode != other.ConditionCode ||
		o.Temperature != other.Temperature ||
		o.Humidity != other.Humidity ||
		o.WindSpeed != other.WindSpeed ||
		o.WindGust != other.WindGust ||
		o.Daylight != other.Daylight ||
		o.Metadata.ReadTime != other.Metadata.ReadTime {
		return false
	}
	if (o.WindDirection == nil) != (other.WindDirection == nil) {
		return false
	}
	if o.WindDirection != nil && *o.WindDirection != *other.WindDirection {
		return false
	}
	return true
}

// SampleTime parses the observation's readTime. The feed timestamps in UTC
// with a trailing "Z" that the layout does not carry.
func (o Observation) SampleTime() (time.Time, error) {
	raw := strings.TrimSuffix(strings.TrimSpace(o.Metadata.ReadTime), "Z")
	t, err := time.Parse(sampleTimeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse readTime %q: %w", o.Metadata.ReadTime, err)
	}
	return t, nil
}

// LocalTime shifts a sample time to the station's local clock.
func LocalTime(sample time.Time) time.Time {
	return sample.Add(localUTCOffset)
}

// Derived holds the feed-ready values computed from one observation.
type Derived struct {
	ConditionCode string
	TemperatureF  float64
	HumidityPct   float64
	WindSpeedMPH  float64
	WindGustMPH   float64
	WindCompass   string
	Icon          string
	Description   string
	Daylight      bool
}

// Derive computes the published representation of an observation. ok reports
// whether the condition code was recognized; on a miss the icon and
// description carry the placeholder values and everything else is still valid.
func Derive(o Observation) (Derived, bool) {
	icon, description, ok := IconAndDescription(o.ConditionCode, o.Daylight)
	return Derived{
		ConditionCode: o.ConditionCode,
		TemperatureF:  CelsiusToFahrenheit(o.Temperature),
		HumidityPct:   o.Humidity * 100,
		WindSpeedMPH:  MPSToMPH(o.WindSpeed),
		WindGustMPH:   MPSToMPH(o.WindGust),
		WindCompass:   CompassLabel(o.WindDirection),
		Icon:          icon,
		Description:   description,
		Daylight:      o.Daylight,
	}, ok
}
