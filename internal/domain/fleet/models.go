package fleet

import (
	"time"
)

// Role identifies which upload a table came from.
type Role string

const (
	RoleMaster Role = "MASTER"
	RoleWeekly Role = "WEEKLY"
)

// Canonical attribute names shared by both sources after normalization.
const (
	AttrDocumentType   = "documentType"
	AttrCompany        = "company"
	AttrDriverName     = "driverName"
	AttrVehicleLabel   = "vehicleLabel"
	AttrPlate          = "plate"
	AttrBrand          = "brand"
	AttrVehicleType    = "vehicleType"
	AttrExpirationDate = "expirationDate"
	AttrPhone          = "phone"
)

// UnassignedDriver is used when a record has no driver.
const UnassignedDriver = "Sin asignar"

// VehicleRecord is one row of either source mapped onto canonical attributes.
// Row is the zero-based data row index in the source table.
type VehicleRecord struct {
	Row            int        `json:"row"`
	DocumentType   string     `json:"document_type,omitempty"`
	Company        string     `json:"company,omitempty"`
	DriverName     string     `json:"driver_name"`
	VehicleLabel   string     `json:"vehicle_label,omitempty"`
	Plate          string     `json:"plate"`
	Brand          string     `json:"brand,omitempty"`
	VehicleType    string     `json:"vehicle_type,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
}

// MergedRecord is a master record whose expiration date may have been
// refreshed from the weekly feed.
type MergedRecord struct {
	VehicleRecord
	PreviousExpiration *time.Time `json:"previous_expiration,omitempty"`
	Matched            bool       `json:"matched"`
	WeeklyRow          int        `json:"weekly_row,omitempty"`
}

// DateChanged reports whether the merge altered the expiration date.
func (m MergedRecord) DateChanged() bool {
	a, b := m.PreviousExpiration, m.ExpirationDate
	if a == nil || b == nil {
		return a != b
	}
	return !a.Equal(*b)
}

// UrgencyTier classifies an expiration date relative to the run date.
type UrgencyTier string

const (
	TierUnknown UrgencyTier = "UNKNOWN"
	TierExpired UrgencyTier = "EXPIRED"
	TierDueSoon UrgencyTier = "DUE_SOON"
	TierOK      UrgencyTier = "OK"
)

// NotificationPayload is the outbound message for one record.
type NotificationPayload struct {
	Record        MergedRecord `json:"-"`
	Tier          UrgencyTier  `json:"tier"`
	Plate         string       `json:"plate"`
	DriverName    string       `json:"driver_name"`
	FormattedDate string       `json:"formatted_date"`
	Message       string       `json:"message"`
	Link          *string      `json:"link,omitempty"`
}
