package weather

import "fmt"

// conditionEntry pairs the long-form description published to the description
// feed with the two-digit OpenWeatherMap icon base the dashboards render.
type conditionEntry struct {
	description string
	icon        string
}

// conditionTable maps Apple WeatherKit condition codes onto OpenWeatherMap
// icon bases (01 clear .. 50 mist). The day/night suffix is applied separately.
var conditionTable = map[string]conditionEntry{
	"Clear":                  {"clear sky", "01"},
	"MostlyClear":            {"mostly clear", "02"},
	"PartlyCloudy":           {"partly cloudy", "03"},
	"MostlyCloudy":           {"mostly cloudy", "04"},
	"Cloudy":                 {"overcast clouds", "04"},
	"Foggy":                  {"fog", "50"},
	"Haze":                   {"haze", "50"},
	"Smoky":                  {"smoke", "50"},
	"BlowingDust":            {"blowing dust", "50"},
	"Breezy":                 {"breezy", "02"},
	"Windy":                  {"windy", "03"},
	"Drizzle":                {"light drizzle", "09"},
	"SunShowers":             {"sun showers", "09"},
	"Rain":                   {"rain", "10"},
	"HeavyRain":              {"heavy rain", "10"},
	"IsolatedThunderstorms":  {"isolated thunderstorms", "11"},
	"ScatteredThunderstorms": {"scattered thunderstorms", "11"},
	"Thunderstorms":          {"thunderstorms", "11"},
	"StrongStorms":           {"strong thunderstorms", "11"},
	"Hurricane":              {"hurricane", "11"},
	"TropicalStorm":          {"tropical storm", "11"},
	"Flurries":               {"snow flurries", "13"},
	"SunFlurries":            {"sun flurries", "13"},
	"Snow":                   {"snow", "13"},
	"HeavySnow":              {"heavy snow", "13"},
	"Blizzard":               {"blizzard", "13"},
	"BlowingSnow":            {"blowing snow", "13"},
	"Sleet":                  {"sleet", "13"},
	"WintryMix":              {"wintry mix", "13"},
	"FreezingDrizzle":        {"freezing drizzle", "13"},
	"FreezingRain":           {"freezing rain", "13"},
	"Hail":                   {"hail", "13"},
	"Hot":                    {"hot", "01"},
	"Frigid":                 {"frigid", "01"},
}

// IconAndDescription resolves a WeatherKit condition code to an icon name and
// long description. Daylight selects the "d" or "n" icon variant. Unknown
// codes are not an error: they map to the out-of-range "99" icon and a
// placeholder description, and ok reports false so callers can log the miss.
func IconAndDescription(code string, daylight bool) (icon, description string, ok bool) {
	suffix := "n"
	if daylight {
		suffix = "d"
	}
	entry, ok := conditionTable[code]
	if !ok {
		return "99" + suffix, fmt.Sprintf("unknown description: %s", code), false
	}
	return entry.icon + suffix, entry.description, true
}
