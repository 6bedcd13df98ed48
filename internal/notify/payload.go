package notify

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fleetdocs-service/internal/domain/fleet"
	"fleetdocs-service/internal/utils"
)

// NoDate replaces the formatted date when the expiration is unknown.
const NoDate = "sin fecha"

const dateLayout = "02/01/2006"

// AddressingSkipped records a payload built without a deep link.
type AddressingSkipped struct {
	Plate  string `json:"plate"`
	Row    int    `json:"row"`
	Phone  string `json:"phone,omitempty"`
	Reason string `json:"reason"`
}

// Report is the triage output of one run.
type Report struct {
	Date     time.Time                   `json:"date"`
	Payloads []fleet.NotificationPayload `json:"payloads"`
	Unknown  []fleet.NotificationPayload `json:"unknown,omitempty"`
	Skipped  []AddressingSkipped         `json:"skipped,omitempty"`
	Counts   map[fleet.UrgencyTier]int   `json:"counts"`
}

type Builder struct {
	cfg Config
	log zerolog.Logger
}

func NewBuilder(cfg Config, log zerolog.Logger) *Builder {
	return &Builder{cfg: cfg, log: log}
}

func (b *Builder) Config() Config {
	return b.cfg
}

// BuildPayload renders the message and, when the phone is usable, the deep
// link. A missing link is reported through the second return value and is
// never an error.
func (b *Builder) BuildPayload(rec fleet.MergedRecord, tier fleet.UrgencyTier, now time.Time) (fleet.NotificationPayload, *AddressingSkipped) {
	formatted := FormatDate(rec.ExpirationDate)
	p := fleet.NotificationPayload{
		Record:        rec,
		Tier:          tier,
		Plate:         rec.Plate,
		DriverName:    rec.DriverName,
		FormattedDate: formatted,
		Message:       Message(rec, tier, formatted),
	}

	link, skipped := b.deepLink(rec, p.Message)
	if skipped != nil {
		return p, skipped
	}
	p.Link = &link
	return p, nil
}

// BuildReport classifies every merged record, keeps those inside the
// reporting window ordered by expiration date (master order on ties) and,
// when configured, lists unknown-dated records separately.
func (b *Builder) BuildReport(records []fleet.MergedRecord, now time.Time) *Report {
	report := &Report{
		Date:     Today(now),
		Payloads: make([]fleet.NotificationPayload, 0),
		Counts:   make(map[fleet.UrgencyTier]int, 4),
	}

	var windowed []fleet.MergedRecord
	for _, rec := range records {
		tier := Classify(rec.ExpirationDate, now, b.cfg.UrgentWindowDays)
		report.Counts[tier]++

		switch {
		case tier == fleet.TierUnknown:
			if b.cfg.IncludeUnknown {
				p, skipped := b.BuildPayload(rec, tier, now)
				report.Unknown = append(report.Unknown, p)
				report.addSkipped(skipped)
			}
		case b.cfg.InWindow(rec.ExpirationDate, now):
			windowed = append(windowed, rec)
		}
	}

	sort.SliceStable(windowed, func(i, j int) bool {
		return windowed[i].ExpirationDate.Before(*windowed[j].ExpirationDate)
	})
	for _, rec := range windowed {
		tier := Classify(rec.ExpirationDate, now, b.cfg.UrgentWindowDays)
		p, skipped := b.BuildPayload(rec, tier, now)
		report.Payloads = append(report.Payloads, p)
		report.addSkipped(skipped)
	}

	for _, s := range report.Skipped {
		b.log.Debug().
			Str("plate", s.Plate).
			Str("reason", s.Reason).
			Msg("payload built without deep link")
	}
	return report
}

func (r *Report) addSkipped(s *AddressingSkipped) {
	if s != nil {
		r.Skipped = append(r.Skipped, *s)
	}
}

// FormatDate renders DD/MM/YYYY or NoDate.
func FormatDate(d *time.Time) string {
	if d == nil {
		return NoDate
	}
	return d.Format(dateLayout)
}

// Message builds the reminder text. Expired documents ask for a re-upload;
// everything else asks the driver to book the renewal ahead of time.
func Message(rec fleet.MergedRecord, tier fleet.UrgencyTier, formattedDate string) string {
	doc := "la documentación"
	if rec.DocumentType != "" {
		doc += " " + rec.DocumentType
	}
	vehicle := rec.Plate
	if rec.VehicleLabel != "" {
		vehicle = fmt.Sprintf("%s (%s)", rec.VehicleLabel, rec.Plate)
	}
	owner := ""
	if rec.Company != "" {
		owner = " de " + rec.Company
	}

	if tier == fleet.TierExpired {
		return fmt.Sprintf("Hola %s, %s del vehículo %s%s venció el %s. Por favor, sube la documentación actualizada lo antes posible.",
			rec.DriverName, doc, vehicle, owner, formattedDate)
	}
	return fmt.Sprintf("Hola %s, %s del vehículo %s%s vence el %s. Por favor, programa la renovación con antelación.",
		rec.DriverName, doc, vehicle, owner, formattedDate)
}

func (b *Builder) deepLink(rec fleet.MergedRecord, message string) (string, *AddressingSkipped) {
	if rec.Phone == nil || strings.TrimSpace(*rec.Phone) == "" {
		return "", &AddressingSkipped{Plate: rec.Plate, Row: rec.Row, Reason: "no phone number"}
	}
	phone := utils.NormalizePhone(*rec.Phone, b.cfg.DefaultCountryCode)
	if len(phone) < minDomesticPhoneDigits {
		return "", &AddressingSkipped{Plate: rec.Plate, Row: rec.Row, Phone: *rec.Phone, Reason: "phone has fewer than 9 digits"}
	}
	return DeepLink(b.cfg.MessagingURL, phone, message), nil
}

// DeepLink joins the messaging URL, the phone and the percent-encoded text.
// Spaces are encoded as %20 rather than '+'.
func DeepLink(base, phone, message string) string {
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return base + phone + "?text=" + text
}
