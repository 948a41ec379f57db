package service

import (
	"time"

	"github.com/trimlink/trimlink/internal/models"
	"github.com/trimlink/trimlink/pkg/device"
)

// DefaultTimelineWindowDays is the timeline window applied when the caller
// does not request one.
const DefaultTimelineWindowDays = 7

// URLAnalytics holds the derived statistics for a single record.
type URLAnalytics struct {
	URL       *models.URL
	Countries map[string]int64
	Devices   map[device.Class]int64
	Timeline  map[string]int64
}

// AggregatedAnalytics holds histograms merged across an owner's records.
type AggregatedAnalytics struct {
	Countries map[string]int64
	Devices   map[device.Class]int64
}

// CountryHistogram counts visits per country. An empty visit set yields an
// empty map, never nil access errors downstream.
func CountryHistogram(visits []models.Visit) map[string]int64 {
	hist := make(map[string]int64, 8)
	for _, v := range visits {
		country := v.Country
		if country == "" {
			country = models.CountryUnknown
		}
		hist[country]++
	}
	return hist
}

// DeviceHistogram counts visits per device class.
func DeviceHistogram(visits []models.Visit) map[device.Class]int64 {
	hist := make(map[device.Class]int64, 4)
	for _, v := range visits {
		class := v.Device
		if class == "" {
			class = device.Unknown
		}
		hist[class]++
	}
	return hist
}

// Timeline buckets visits by UTC calendar day within [now - windowDays, now].
// Keys are ISO dates (2006-01-02).
func Timeline(visits []models.Visit, windowDays int, now time.Time) map[string]int64 {
	timeline := make(map[string]int64, windowDays)
	start := now.AddDate(0, 0, -windowDays)

	for _, v := range visits {
		ts := v.Timestamp.UTC()
		if ts.Before(start) || ts.After(now) {
			continue
		}
		timeline[ts.Format(time.DateOnly)]++
	}

	return timeline
}
