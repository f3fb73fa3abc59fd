package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"extinguisher_map/internal/dataset"
)

const sampleJSON = `{
  "buildings": [{"id": 1, "name": "A", "extinguishers": 1, "color": "#fff"}],
  "extinguishers": [{"id": "FE-1", "building": 1, "x": 10, "y": 20, "status": "good",
    "type": "CO2", "size": "5 lb", "manufacturer": "Amerex",
    "lastInspection": "2024-01-10", "nextDue": "2025-01-10"}]
}`

const sampleCSV = "ID,Building,X,Y,Status,Type,Size,Manufacturer,Last Inspection,Next Due\n" +
	"FE-1,7,10,20,good,CO2,5 lb,Amerex,2024-01-10,2025-01-10\n" +
	"\n" +
	"FE-2,3.0,30.5,40,overdue,Water,2.5 gal,Badger,2023-05-01,2024-05-01\n" +
	"FE-3,7,50,60,inspection_due_soon,ABC,10 lb,Kidde,2024-03-03,2024-09-03\n"

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newChain(jsonLoc, csvLoc string, timeout time.Duration) *Chain {
	f := NewFetcher(timeout)
	return NewChain(zap.NewNop(), timeout,
		&JSONStrategy{Location: jsonLoc, Fetcher: f},
		&CSVStrategy{Location: csvLoc, Fetcher: f},
	)
}

func TestChainPrefersJSON(t *testing.T) {
	res := newChain(writeFile(t, "data.json", sampleJSON), writeFile(t, "backup.csv", sampleCSV), time.Second).Load(context.Background())
	assert.Equal(t, SourceJSON, res.Source)
	require.Len(t, res.Attempts, 1)
	require.Len(t, res.Raw.Extinguishers, 1)
	assert.Equal(t, "FE-1", res.Raw.Extinguishers[0].ID)
	assert.Equal(t, 1, res.Raw.Buildings[0].ExtinguisherCount)
	assert.Equal(t, "2024-01-10", res.Raw.Extinguishers[0].LastInspection)
}

func TestChainFallsBackToCSV(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.json")
	res := newChain(missing, writeFile(t, "backup.csv", sampleCSV), time.Second).Load(context.Background())

	assert.Equal(t, SourceCSV, res.Source)
	require.Len(t, res.Attempts, 2)
	assert.NotEmpty(t, res.Attempts[0].Error)
	assert.Empty(t, res.Attempts[1].Error)

	require.Len(t, res.Raw.Extinguishers, 3)
	require.Len(t, res.Raw.Buildings, 2)
	assert.Equal(t, dataset.Building{ID: 7, Name: "Building-7", ExtinguisherCount: 2, Color: "#FF6B6B"}, res.Raw.Buildings[0])
	assert.Equal(t, dataset.Building{ID: 3, Name: "Building-3", ExtinguisherCount: 1, Color: "#4ECDC4"}, res.Raw.Buildings[1])

	snap := dataset.Normalize(res.Raw, res.Source, time.Now())
	for _, e := range snap.Extinguishers {
		assert.Equal(t, fmt.Sprintf("Building-%d", e.Building), e.BuildingName)
	}
	e, ok := snap.FindByID("FE-2")
	require.True(t, ok)
	assert.Equal(t, 30.5, e.X)
	assert.Equal(t, dataset.StatusOverdue, e.Status)
	assert.Equal(t, "2024-05-01", e.NextDue)
}

func TestChainMalformedJSONFallsBack(t *testing.T) {
	res := newChain(writeFile(t, "data.json", `{"buildings": [`), writeFile(t, "backup.csv", sampleCSV), time.Second).Load(context.Background())
	assert.Equal(t, SourceCSV, res.Source)
	assert.Contains(t, res.Attempts[0].Error, ErrParseFailure.Error())
}

func TestChainNullJSONFallsBack(t *testing.T) {
	res := newChain(writeFile(t, "data.json", " null\n"), writeFile(t, "backup.csv", sampleCSV), time.Second).Load(context.Background())
	assert.Equal(t, SourceCSV, res.Source)
	require.Len(t, res.Attempts, 2)
	assert.Contains(t, res.Attempts[0].Error, "null")
}

func TestParseJSONErrorPrefix(t *testing.T) {
	_, err := ParseJSON([]byte(`[1, 2]`), zap.NewNop())
	require.ErrorIs(t, err, ErrParseFailure)
	assert.Equal(t, 1, strings.Count(err.Error(), "json:"))
}

func TestParseJSONLenientRecords(t *testing.T) {
	body := `{
  "extinguishers": [
    {"id": "FE-1", "building": "1", "x": 1, "y": 2, "status": "good"},
    {"id": "FE-2", "building": 3.0, "x": 1, "y": 2},
    {"id": "FE-3", "building": "north", "x": 1, "y": 2},
    {"id": "FE-4", "building": 1, "x": "left", "y": 2},
    {"id": "FE-5", "x": 1, "y": 2},
    {"id": "FE-6", "building": 1e300, "x": 1, "y": 2}
  ]
}`
	raw, err := ParseJSON([]byte(body), zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, raw.Buildings)
	assert.Empty(t, raw.Buildings)
	require.Len(t, raw.Extinguishers, 2)
	assert.Equal(t, 1, raw.Extinguishers[0].Building)
	assert.Equal(t, dataset.StatusGood, raw.Extinguishers[0].Status)
	assert.Equal(t, 3, raw.Extinguishers[1].Building)
	assert.Equal(t, 4, raw.SkippedRows)
}

func TestChainBothFailYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	res := newChain(filepath.Join(dir, "a.json"), filepath.Join(dir, "b.csv"), time.Second).Load(context.Background())
	assert.Equal(t, SourceEmpty, res.Source)
	assert.NotNil(t, res.Raw.Buildings)
	assert.NotNil(t, res.Raw.Extinguishers)
	assert.Empty(t, res.Raw.Buildings)
	assert.Empty(t, res.Raw.Extinguishers)
	assert.Len(t, res.Attempts, 2)
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }
func (panicky) Load(context.Context) (dataset.Raw, error) {
	panic("boom")
}

func TestChainRecoversFromPanickingStrategy(t *testing.T) {
	res := NewChain(nil, 0, panicky{}).Load(context.Background())
	assert.Equal(t, SourceEmpty, res.Source)
	assert.Contains(t, res.Attempts[0].Error, "boom")
}

func TestFetchOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fire-extinguishers.json":
			w.WriteHeader(http.StatusNotFound)
		case "/backup.csv":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte(sampleCSV))
		}
	}))
	defer srv.Close()

	res := newChain(srv.URL+"/fire-extinguishers.json", srv.URL+"/backup.csv", time.Second).Load(context.Background())
	assert.Equal(t, SourceCSV, res.Source)
	assert.Contains(t, res.Attempts[0].Error, "404")
	assert.Len(t, res.Raw.Extinguishers, 3)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewFetcher(100 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := f.Fetch(ctx, srv.URL+"/slow.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResourceUnavailable))
}

func TestFetchFileURL(t *testing.T) {
	path := writeFile(t, "data.json", sampleJSON)
	body, err := NewFetcher(time.Second).Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "FE-1")
}

func TestParseCSVHeaderAliases(t *testing.T) {
	body := "\xef\xbb\xbfid,building,x,y,status,type,size,manufacturer,last_inspection,NEXTDUE\n" +
		"FE-9,2,1,2,good,CO2,5 lb,Amerex,a,b\n"
	path := writeFile(t, "b.csv", body)
	raw, err := (&CSVStrategy{Location: path, Fetcher: NewFetcher(time.Second)}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, raw.Extinguishers, 1)
	assert.Equal(t, "FE-9", raw.Extinguishers[0].ID)
	assert.Equal(t, "a", raw.Extinguishers[0].LastInspection)
	assert.Equal(t, "b", raw.Extinguishers[0].NextDue)
}

func TestParseCSVSkipsBadRows(t *testing.T) {
	body := "id,building,x,y\n" +
		"FE-1,1,10,20\n" +
		"FE-2,abc,10,20\n" +
		",1,10,20\n" +
		"FE-4,1.5,10,20\n" +
		"FE-5,1,NaN,20\n" +
		",,,\n" +
		"FE-6,2,1,oops\n" +
		"FE-7,1e300,1,2\n" +
		"FE-8,9.3e18,1,2\n" +
		"FE-9,-1e300,1,2\n"
	exts, skipped, err := ParseCSV([]byte(body), zap.NewNop())
	require.NoError(t, err)
	require.Len(t, exts, 1)
	assert.Equal(t, "FE-1", exts[0].ID)
	assert.Equal(t, 8, skipped)
}

func TestParseCSVFailures(t *testing.T) {
	_, _, err := ParseCSV([]byte(""), zap.NewNop())
	assert.True(t, errors.Is(err, ErrParseFailure))

	_, _, err = ParseCSV([]byte("id,building,x\nFE-1,1,2\n"), zap.NewNop())
	assert.True(t, errors.Is(err, ErrParseFailure), "missing y column")

	_, _, err = ParseCSV([]byte("id,building,x,y\n\"FE-1,1,2,3\n"), zap.NewNop())
	assert.True(t, errors.Is(err, ErrParseFailure), "unterminated quote")
}

func TestParseCSVRaggedRows(t *testing.T) {
	body := "id,building,x,y,status,type\n" +
		"FE-1,1,2\n" +
		"FE-2,1,2,3\n" +
		"FE-3,1,2,3,good,CO2,extra\n"
	exts, skipped, err := ParseCSV([]byte(body), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, exts, 2)
	assert.Equal(t, dataset.Status(""), exts[0].Status)
	assert.Equal(t, "CO2", exts[1].Type)
}
