package processing

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kacperjurak/gocvcore"
	"github.com/kacperjurak/gocvcore/internal/workbook"
	"github.com/kacperjurak/gocvcore/pkg/cache"
	"github.com/kacperjurak/gocvcore/pkg/models"
)

type mockLoader struct{ mock.Mock }

func (m *mockLoader) Load(path string, opts workbook.Options) (*workbook.Workbook, error) {
	args := m.Called(path, opts)
	wb, _ := args.Get(0).(*workbook.Workbook)
	return wb, args.Error(1)
}

type mockCache struct{ mock.Mock }

func (m *mockCache) Get(key string) (*gocvcore.CycleDataset, bool, error) {
	args := m.Called(key)
	ds, _ := args.Get(0).(*gocvcore.CycleDataset)
	return ds, args.Bool(1), args.Error(2)
}

func (m *mockCache) Put(key string, ds *gocvcore.CycleDataset) error {
	return m.Called(key, ds).Error(0)
}

func sampleWorkbook(path string, mass float64) *workbook.Workbook {
	frame := dataframe.LoadRecords([][]string{
		{"Cycle_Index", "Voltage(V)", "Current(A)"},
		{"1", "0.1", "0.002"},
		{"1", "0.2", "0.004"},
		{"1", "0.3", "0.006"},
		{"2", "0.1", "0.001"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType("string"))
	return &workbook.Workbook{
		Path:  path,
		Sheet: workbook.DefaultChannelSheet,
		Frame: frame,
		Mass:  mass,
		Label: workbook.ParseLabel(path),
	}
}

func anyOpts() any { return mock.AnythingOfType("workbook.Options") }

func TestProcess_MissLoadsAndStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cell_25C.xlsx")
	loader, c := &mockLoader{}, &mockCache{}
	c.On("Get", path).Return(nil, false, nil).Once()
	loader.On("Load", path, anyOpts()).Return(sampleWorkbook(path, 2), nil).Once()
	c.On("Put", path, mock.AnythingOfType("*gocvcore.CycleDataset")).Return(nil).Once()

	p := NewCVProcessor(Options{Cache: c, Loader: loader})
	res, err := p.Process(context.Background(), models.WorkItem{Path: path, Window: 2})
	require.NoError(t, err)

	assert.False(t, res.Cached)
	assert.Equal(t, "25°C", res.Label)
	assert.Equal(t, 2.0, res.Dataset.Mass)
	assert.Equal(t, 2, res.Dataset.Window)
	assert.Equal(t, []int{1, 2}, res.Dataset.CycleNumbers())
	loader.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestProcess_HitSkipsLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cell_40C.xlsx")
	ds, err := gocvcore.Process(sampleWorkbook(path, 2).Frame, gocvcore.Options{Mass: 2, Window: 3})
	require.NoError(t, err)

	loader, c := &mockLoader{}, &mockCache{}
	c.On("Get", path).Return(ds, true, nil)

	p := NewCVProcessor(Options{Cache: c, Loader: loader})
	res, err := p.Process(context.Background(), models.WorkItem{Path: path, Window: 3})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, "40°C", res.Label)
	assert.Same(t, ds, res.Dataset)

	res, err = p.Process(context.Background(), models.WorkItem{Path: path, Window: 3, Mass: 2})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	loader.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestProcess_ParameterMismatchIsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.xlsx")
	ds, err := gocvcore.Process(sampleWorkbook(path, 2).Frame, gocvcore.Options{Mass: 2, Window: 3})
	require.NoError(t, err)

	tests := map[string]models.WorkItem{
		"window": {Path: path, Window: 4},
		"policy": {Path: path, Window: 3, Policy: gocvcore.SavitzkyGolay},
		"mass":   {Path: path, Window: 3, Mass: 0.5},
	}
	for name, item := range tests {
		t.Run(name, func(t *testing.T) {
			loader, c := &mockLoader{}, &mockCache{}
			c.On("Get", path).Return(ds, true, nil)
			c.On("Put", path, mock.Anything).Return(nil)
			loader.On("Load", path, mock.MatchedBy(func(o workbook.Options) bool {
				return o.MassOverride == item.Mass
			})).Return(sampleWorkbook(path, 2), nil).Once()

			p := NewCVProcessor(Options{Cache: c, Loader: loader})
			res, err := p.Process(context.Background(), item)
			require.NoError(t, err)
			assert.False(t, res.Cached)
			assert.Equal(t, item.Window, res.Dataset.Window)
			loader.AssertExpectations(t)
		})
	}
}

func TestProcess_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	loadErr := errors.New("zip: not a valid zip file")

	loader, c := &mockLoader{}, &mockCache{}
	c.On("Get", path).Return(nil, false, cache.ErrCorruptEntry)
	loader.On("Load", path, anyOpts()).Return(nil, loadErr).Once()

	p := NewCVProcessor(Options{Cache: c, Loader: loader})
	_, err := p.Process(context.Background(), models.WorkItem{Path: path})
	assert.ErrorIs(t, err, loadErr)

	_, err = p.Process(context.Background(), models.WorkItem{Path: path, Window: -1})
	var perr *gocvcore.SmoothingPolicyError
	assert.ErrorAs(t, err, &perr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Process(ctx, models.WorkItem{Path: path})
	assert.ErrorIs(t, err, context.Canceled)

	loader.AssertNumberOfCalls(t, "Load", 1)
	c.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestProcess_SchemaErrorCarriesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.xlsx")
	wb := sampleWorkbook(path, 1)
	wb.Frame = dataframe.LoadRecords([][]string{{"Cycle", "V", "I"}, {"1", "0.1", "0.2"}})

	p := NewCVProcessor(Options{Loader: LoaderFunc(func(string, workbook.Options) (*workbook.Workbook, error) {
		return wb, nil
	})})
	_, err := p.Process(context.Background(), models.WorkItem{Path: path})
	var serr *gocvcore.SchemaError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, err.Error(), "process workbook")
}

func TestProcess_CollapsesConcurrentLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cell_25C.xlsx")
	var calls atomic.Int32
	entered, release := make(chan struct{}), make(chan struct{})

	p := NewCVProcessor(Options{Loader: LoaderFunc(func(string, workbook.Options) (*workbook.Workbook, error) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		return sampleWorkbook(path, 2), nil
	})})

	const n = 8
	var wg sync.WaitGroup
	results := make([]*Result, n)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := p.Process(context.Background(), models.WorkItem{Path: path, Window: 2})
		assert.NoError(t, err)
		results[0] = res
	}()
	<-entered
	for i := 1; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Process(context.Background(), models.WorkItem{Path: path, Window: 2})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, res := range results {
		require.NotNil(t, res)
		assert.Same(t, results[0].Dataset, res.Dataset)
	}
}

func TestProcess_FileCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cell_25C.xlsx")
	var calls int
	loader := LoaderFunc(func(string, workbook.Options) (*workbook.Workbook, error) {
		calls++
		return sampleWorkbook(path, 2), nil
	})
	fc := cache.NewFileCache(cache.FileOptions{})
	p := NewCVProcessor(Options{Cache: fc, Loader: loader})

	first, err := p.Process(context.Background(), models.WorkItem{Path: path, Window: 2})
	require.NoError(t, err)
	second, err := p.Process(context.Background(), models.WorkItem{Path: path, Window: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.True(t, second.Cached)
	assert.True(t, first.Dataset.Equal(second.Dataset))

	require.NoError(t, p.Remove(path))
	assert.NoFileExists(t, fc.Path(path))
}

func TestProcessorFunc(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cell_25C.xlsx")
	p := NewCVProcessor(Options{Loader: LoaderFunc(func(string, workbook.Options) (*workbook.Workbook, error) {
		return sampleWorkbook(path, 2), nil
	})})
	fn := p.ProcessorFunc()

	ok := fn(context.Background(), models.WorkItem{ID: 7, Path: path, RequestID: "r"})
	assert.True(t, ok.Success)
	assert.Equal(t, 7, ok.ID)
	assert.Equal(t, "25°C", ok.Label)
	assert.Equal(t, 2.0, ok.Mass)

	failed := fn(context.Background(), models.WorkItem{ID: 8, Path: path, Window: -3})
	assert.False(t, failed.Success)
	assert.Error(t, failed.Err)
	assert.Nil(t, failed.Dataset)
}
