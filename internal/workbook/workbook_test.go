package workbook

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kacperjurak/gocvcore"
)

type fixture struct {
	channel string
	rows    [][]any
	info    bool
	mass    any
}

func defaultFixture() fixture {
	return fixture{
		channel: DefaultChannelSheet,
		rows: [][]any{
			{"Data_Point", "Cycle_Index", "Voltage(V)", "Current(A)"},
			{1, 1, 0.1, 0.002},
			{2, 1, 0.2, 0.004},
			{3, 2, 0.1, 0.001},
		},
		info: true,
		mass: 2.0,
	}
}

func writeWorkbook(t *testing.T, name string, fx fixture) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(fx.channel)
	require.NoError(t, err)
	for i, row := range fx.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(fx.channel, cell, &r))
	}

	if fx.info {
		_, err := f.NewSheet(DefaultInfoSheet)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(DefaultInfoSheet, "H4", "Mass (g)"))
		require.NoError(t, f.SetCellValue(DefaultInfoSheet, "H5", fx.mass))
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestOpen(t *testing.T) {
	path := writeWorkbook(t, "LFP_25C_run1.xlsx", defaultFixture())

	wb, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, DefaultChannelSheet, wb.Sheet)
	assert.Equal(t, 2.0, wb.Mass)
	assert.Equal(t, "Mass (g)", wb.MassLabel)
	assert.Equal(t, "25°C", wb.Label)
	assert.Equal(t, 3, wb.Frame.Nrow())

	rows, err := gocvcore.ExtractRows(wb.Frame, gocvcore.DefaultColumns())
	require.NoError(t, err)
	assert.Equal(t, []gocvcore.MeasurementRow{
		{CycleIndex: 1, Voltage: 0.1, Current: 0.002},
		{CycleIndex: 1, Voltage: 0.2, Current: 0.004},
		{CycleIndex: 2, Voltage: 0.1, Current: 0.001},
	}, rows)
}

func TestRead_FromReader(t *testing.T) {
	path := writeWorkbook(t, "x.xlsx", defaultFixture())
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	wb, err := Read(bytes.NewReader(data), "upload_40c.xlsx", Options{})
	require.NoError(t, err)
	assert.Equal(t, "upload_40c.xlsx", wb.Path)
	assert.Equal(t, "40°C", wb.Label)
	assert.Equal(t, 2.0, wb.Mass)
}

func TestOpen_SheetStrategies(t *testing.T) {
	fx := defaultFixture()
	fx.channel = "Channel_1_3"
	path := writeWorkbook(t, "a.xlsx", fx)

	_, err := Open(path, DefaultOptions())
	assert.ErrorIs(t, err, ErrSheetNotFound)

	wb, err := Open(path, Options{Sheet: DiscoverSheet(DiscoverPrefix)})
	require.NoError(t, err)
	assert.Equal(t, "Channel_1_3", wb.Sheet)

	wb, err = Open(path, Options{Sheet: FirstOf(FixedSheet(DefaultChannelSheet), DiscoverSheet(DiscoverPrefix))})
	require.NoError(t, err)
	assert.Equal(t, "Channel_1_3", wb.Sheet)
}

func TestOpen_MassErrors(t *testing.T) {
	fx := defaultFixture()
	fx.mass = "n/a"
	path := writeWorkbook(t, "a.xlsx", fx)

	_, err := Open(path, DefaultOptions())
	assert.ErrorIs(t, err, ErrMassNotNumeric)

	wb, err := Open(path, Options{MassOverride: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, wb.Mass)

	fx = defaultFixture()
	fx.info = false
	path = writeWorkbook(t, "b.xlsx", fx)

	_, err = Open(path, DefaultOptions())
	assert.ErrorIs(t, err, ErrInfoSheetMissing)

	wb, err = Open(path, Options{MassOverride: 1.5})
	require.NoError(t, err)
	assert.Equal(t, 1.5, wb.Mass)
	assert.Empty(t, wb.MassLabel)
}

func TestOpen_RaggedAndEmptyCells(t *testing.T) {
	fx := defaultFixture()
	fx.rows = [][]any{
		{"Cycle_Index", "Voltage(V)", "Current(A)", "Step_Time(s)"},
		{1, 0.1, 0.002},
		{1, nil, 0.004, 12},
	}
	path := writeWorkbook(t, "a.xlsx", fx)

	wb, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, wb.Frame.Nrow())
	assert.Equal(t, 4, wb.Frame.Ncol())

	_, err = gocvcore.ExtractRows(wb.Frame, gocvcore.DefaultColumns())
	var merr *gocvcore.MissingFieldError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 1, merr.Row)
	assert.Equal(t, "Voltage(V)", merr.Field)
}

func TestOpen_HeaderOnly(t *testing.T) {
	fx := defaultFixture()
	fx.rows = fx.rows[:1]
	path := writeWorkbook(t, "a.xlsx", fx)

	wb, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, wb.Frame.Nrow())

	ds, err := gocvcore.Process(wb.Frame, gocvcore.Options{Mass: wb.Mass, Window: 8})
	require.NoError(t, err)
	assert.Empty(t, ds.Cycles)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.xlsx"), DefaultOptions())
	assert.Error(t, err)
}

func TestParseLabel(t *testing.T) {
	tests := map[string]string{
		"LFP_25C.xlsx":           "25°C",
		"/data/run_-10c_a.xlsx":  "10°C",
		"cell 12.5C.xlsx":        "12.5°C",
		"sample.xlsx":            UnknownLabel,
		"Cu_foil_CV.xlsx":        UnknownLabel,
		"/tmp/45C_dir/file.xlsx": UnknownLabel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLabel(in), in)
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("", "")
	require.NoError(t, err)
	assert.Equal(t, FixedSheet(DefaultChannelSheet), s)

	s, err = ParseStrategy("discover", "")
	require.NoError(t, err)
	name, ok := s.Select([]string{"Sheet1", "Channel_2_1", "Channel_4_1"})
	assert.True(t, ok)
	assert.Equal(t, "Channel_2_1", name)

	s, err = ParseStrategy("fixed-then-discover", "Channel_4_1")
	require.NoError(t, err)
	name, ok = s.Select([]string{"Sheet1", "Channel_2_1", "Channel_4_1"})
	assert.True(t, ok)
	assert.Equal(t, "Channel_4_1", name)

	_, ok = s.Select([]string{"Sheet1"})
	assert.False(t, ok)

	_, err = ParseStrategy("random", "")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
