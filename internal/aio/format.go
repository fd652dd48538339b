package aio

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatValue renders a feed value the way the dashboards expect: floats in
// shortest form, booleans with Python-style capitalization ("True"/"False"),
// which downstream widgets have matched against for years.
func FormatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// feedIDFromTopic extracts the feed identifier from an Adafruit IO topic:
// {user}/weather/{key}/{mode} carries the weather feed and
// {user}/feeds/{name} a named feed.
func feedIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return topic
	}
	switch parts[1] {
	case "weather":
		return "weather"
	case "feeds":
		if len(parts) > 2 {
			return parts[2]
		}
	}
	return parts[len(parts)-1]
}
