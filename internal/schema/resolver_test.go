package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetdocs-service/internal/domain/fleet"
)

var (
	weeklyHeaders = []string{"Tipo Dococumento", "Empresa", "Conductor", "Vehiculo", "Matricula", "Marca", "TipoVehiculo", "Vencimiento"}
	masterHeaders = []string{"Tipo", "Empresa", "Conductor", "Vehículo", "Matricula", "Marca", "Tipo de vehículo", "Fecha de vencimiento", "Telefono"}
)

func TestResolveFuzzyJoinKeyAccentAndCase(t *testing.T) {
	for _, header := range []string{"Vehículo", "VEHICULO", "vehiculo ", " VehÍculo"} {
		res, err := ResolveFuzzy([]string{header, "Fecha de vencimiento"}, fleet.RoleMaster)
		require.NoError(t, err, header)
		assert.Equal(t, 0, res.Index(fleet.AttrPlate), header)
	}
}

func TestResolveFuzzyMasterHeaders(t *testing.T) {
	res, err := ResolveFuzzy(masterHeaders, fleet.RoleMaster)
	require.NoError(t, err)

	want := map[string]int{
		fleet.AttrDocumentType:   0,
		fleet.AttrCompany:        1,
		fleet.AttrDriverName:     2,
		fleet.AttrVehicleLabel:   3,
		fleet.AttrPlate:          4,
		fleet.AttrBrand:          5,
		fleet.AttrVehicleType:    6,
		fleet.AttrExpirationDate: 7,
		fleet.AttrPhone:          8,
	}
	for attr, idx := range want {
		assert.Equal(t, idx, res.Index(attr), attr)
	}
}

func TestResolveFuzzyWeeklyHeaders(t *testing.T) {
	res, err := ResolveFuzzy(weeklyHeaders, fleet.RoleWeekly)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Index(fleet.AttrDocumentType))
	assert.Equal(t, 3, res.Index(fleet.AttrVehicleLabel))
	assert.Equal(t, 4, res.Index(fleet.AttrPlate))
	assert.Equal(t, 6, res.Index(fleet.AttrVehicleType))
	assert.Equal(t, 7, res.Index(fleet.AttrExpirationDate))
	assert.Equal(t, -1, res.Index(fleet.AttrPhone))
}

func TestResolveFuzzyFirstMatchWins(t *testing.T) {
	headers := []string{"Fecha vencimiento ITV", "Matrícula", "Fecha vencimiento seguro", "MATRICULA remolque"}
	res, err := ResolveFuzzy(headers, fleet.RoleMaster)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Index(fleet.AttrPlate))
	assert.Equal(t, 0, res.Index(fleet.AttrExpirationDate))
}

func TestResolveFuzzyPrefersFechaOverBareVenci(t *testing.T) {
	headers := []string{"Matricula", "Vencido", "Fecha de vencimiento"}
	res, err := ResolveFuzzy(headers, fleet.RoleMaster)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Index(fleet.AttrExpirationDate))
}

func TestResolveFuzzyOptionalColumns(t *testing.T) {
	res, err := ResolveFuzzy([]string{"matricula", "vencimiento"}, fleet.RoleWeekly)
	require.NoError(t, err)
	assert.Equal(t, -1, res.Index(fleet.AttrDriverName))
	assert.Equal(t, -1, res.Index(fleet.AttrPhone))
}

func TestResolveFuzzyMissingRequired(t *testing.T) {
	_, err := ResolveFuzzy([]string{"Empresa", "Marca"}, fleet.RoleWeekly)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaResolution))

	var sre *SchemaResolutionError
	require.True(t, errors.As(err, &sre))
	assert.Equal(t, fleet.RoleWeekly, sre.Role)
	assert.Equal(t, []string{fleet.AttrPlate, fleet.AttrExpirationDate}, sre.Missing)
	assert.Contains(t, err.Error(), "WEEKLY")
	assert.Contains(t, err.Error(), "Empresa, Marca")
}

func TestResolveStrict(t *testing.T) {
	res, err := ResolveStrict(append([]string{" extra "}, weeklyHeaders...), fleet.RoleWeekly)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Index(fleet.AttrPlate))
	assert.Equal(t, 8, res.Index(fleet.AttrExpirationDate))

	res, err = ResolveStrict([]string{" Matricula ", "Tipo", "Empresa", "Conductor", "Vehículo", "Marca", "Tipo de vehículo", "Fecha de vencimiento", "Telefono"}, fleet.RoleMaster)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Index(fleet.AttrPlate))
}

func TestResolveStrictNamesMissingHeaders(t *testing.T) {
	headers := []string{"Tipo", "Empresa", "Conductor", "Vehiculo", "Matricula", "Marca", "Tipo de vehículo", "Vencimiento"}
	_, err := ResolveStrict(headers, fleet.RoleMaster)

	var sre *SchemaResolutionError
	require.True(t, errors.As(err, &sre))
	assert.Equal(t, ModeStrict, sre.Mode)
	assert.Equal(t, []string{"Vehículo", "Fecha de vencimiento", "Telefono"}, sre.Missing)
	assert.Contains(t, err.Error(), "expected header(s)")
}

func TestResolveDispatch(t *testing.T) {
	_, err := Resolve([]string{"matricula", "fecha vencimiento"}, fleet.RoleMaster, ModeStrict)
	assert.Error(t, err)
	_, err = Resolve([]string{"matricula", "fecha vencimiento"}, fleet.RoleMaster, ModeFuzzy)
	assert.NoError(t, err)
	assert.Equal(t, ModeStrict, ParseMode("strict"))
	assert.Equal(t, ModeFuzzy, ParseMode(""))
}
