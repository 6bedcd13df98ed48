// Package notify assigns urgency tiers to merged records and builds the
// outbound reminder messages for drivers.
package notify

import (
	"time"

	"fleetdocs-service/internal/domain/fleet"
)

const (
	DefaultUrgentWindowDays = 7
	DefaultReportWindowDays = 30
	DefaultCountryCode      = "34"
	DefaultMessagingURL     = "https://wa.me/"
	minDomesticPhoneDigits  = 9
)

// Config holds the overridable thresholds.
type Config struct {
	UrgentWindowDays   int    `mapstructure:"urgent_window_days"`
	ReportWindowDays   int    `mapstructure:"report_window_days"`
	DefaultCountryCode string `mapstructure:"default_country_code"`
	MessagingURL       string `mapstructure:"messaging_url"`
	// IncludeUnknown surfaces records without a date in Report.Unknown.
	IncludeUnknown bool `mapstructure:"include_unknown"`
}

func DefaultConfig() Config {
	return Config{
		UrgentWindowDays:   DefaultUrgentWindowDays,
		ReportWindowDays:   DefaultReportWindowDays,
		DefaultCountryCode: DefaultCountryCode,
		MessagingURL:       DefaultMessagingURL,
		IncludeUnknown:     true,
	}
}

// Today truncates now to its calendar date, expressed at midnight UTC so it
// compares directly with parsed expiration dates.
func Today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Classify applies the tier rules in priority order: unknown, expired
// (strictly before today), due soon (up to and including today+urgentDays),
// otherwise OK.
func Classify(exp *time.Time, now time.Time, urgentDays int) fleet.UrgencyTier {
	if exp == nil {
		return fleet.TierUnknown
	}
	today := Today(now)
	switch {
	case exp.Before(today):
		return fleet.TierExpired
	case !exp.After(today.AddDate(0, 0, urgentDays)):
		return fleet.TierDueSoon
	default:
		return fleet.TierOK
	}
}

// ClassifyAll tiers every record, preserving order.
func (c Config) ClassifyAll(records []fleet.MergedRecord, now time.Time) []fleet.UrgencyTier {
	tiers := make([]fleet.UrgencyTier, len(records))
	for i, r := range records {
		tiers[i] = Classify(r.ExpirationDate, now, c.UrgentWindowDays)
	}
	return tiers
}

// InWindow reports whether exp falls within ReportWindowDays either side
// of today, inclusive. Unknown dates are never in the window.
func (c Config) InWindow(exp *time.Time, now time.Time) bool {
	if exp == nil {
		return false
	}
	today := Today(now)
	from := today.AddDate(0, 0, -c.ReportWindowDays)
	to := today.AddDate(0, 0, c.ReportWindowDays)
	return !exp.Before(from) && !exp.After(to)
}
