package schema

import (
	"fleetdocs-service/internal/domain/fleet"
)

// Mode selects how raw headers are resolved to canonical attributes.
type Mode string

const (
	// ModeFuzzy searches headers for known substrings and tolerates drift.
	ModeFuzzy Mode = "fuzzy"
	// ModeStrict requires the exact header list of each source.
	ModeStrict Mode = "strict"
)

// ParseMode maps a config value to a Mode, defaulting to fuzzy.
func ParseMode(s string) Mode {
	if Mode(s) == ModeStrict {
		return ModeStrict
	}
	return ModeFuzzy
}

// RequiredAttributes must resolve in every source.
var RequiredAttributes = []string{fleet.AttrPlate, fleet.AttrExpirationDate}

// StrictColumn pairs an exact header spelling with its canonical attribute.
type StrictColumn struct {
	Header    string
	Attribute string
}

// StrictVocabulary is the exact header list each feed is expected to carry.
// "Tipo Dococumento" is spelled the way the ERP exports it.
var StrictVocabulary = map[fleet.Role][]StrictColumn{
	fleet.RoleWeekly: {
		{"Tipo Dococumento", fleet.AttrDocumentType},
		{"Empresa", fleet.AttrCompany},
		{"Conductor", fleet.AttrDriverName},
		{"Vehiculo", fleet.AttrVehicleLabel},
		{"Matricula", fleet.AttrPlate},
		{"Marca", fleet.AttrBrand},
		{"TipoVehiculo", fleet.AttrVehicleType},
		{"Vencimiento", fleet.AttrExpirationDate},
	},
	fleet.RoleMaster: {
		{"Tipo", fleet.AttrDocumentType},
		{"Empresa", fleet.AttrCompany},
		{"Conductor", fleet.AttrDriverName},
		{"Vehículo", fleet.AttrVehicleLabel},
		{"Matricula", fleet.AttrPlate},
		{"Marca", fleet.AttrBrand},
		{"Tipo de vehículo", fleet.AttrVehicleType},
		{"Fecha de vencimiento", fleet.AttrExpirationDate},
		{"Telefono", fleet.AttrPhone},
	},
}

// matchRule matches a folded header. A header matches when it contains
// every substring in All, none in None, and equals Exact when set.
type matchRule struct {
	All   []string
	None  []string
	Exact string
}

type attributeRules struct {
	Attribute string
	Rules     []matchRule
}

// fuzzyPrecedence is evaluated top to bottom. Each attribute tries its rules
// in order and each rule scans headers in column order; a header is claimed
// by at most one attribute. The plate and date rules come first so that the
// generic VEHICULO and TIPO rules cannot steal their columns.
var fuzzyPrecedence = []attributeRules{
	{fleet.AttrPlate, []matchRule{
		{All: []string{"MATRICULA"}},
		{All: []string{"PLACA"}},
		{All: []string{"VEHICULO"}, None: []string{"TIPO"}},
	}},
	{fleet.AttrExpirationDate, []matchRule{
		{All: []string{"VENCI", "FECHA"}},
		{All: []string{"VENCI"}},
	}},
	{fleet.AttrVehicleType, []matchRule{
		{All: []string{"TIPO", "VEHICULO"}},
	}},
	{fleet.AttrDocumentType, []matchRule{
		{All: []string{"TIPO", "DOC"}},
		{Exact: "TIPO"},
	}},
	{fleet.AttrVehicleLabel, []matchRule{
		{All: []string{"VEHICULO"}},
	}},
	{fleet.AttrCompany, []matchRule{
		{All: []string{"EMPRESA"}},
	}},
	{fleet.AttrBrand, []matchRule{
		{All: []string{"MARCA"}},
	}},
	{fleet.AttrDriverName, []matchRule{
		{All: []string{"CONDUCTOR"}},
	}},
	{fleet.AttrPhone, []matchRule{
		{All: []string{"TELEFONO"}},
		{All: []string{"MOVIL"}},
	}},
}
