package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"extinguisher_map/internal/dataset"
)

type csvField int

const (
	fieldID csvField = iota
	fieldBuilding
	fieldX
	fieldY
	fieldStatus
	fieldType
	fieldSize
	fieldManufacturer
	fieldLastInspection
	fieldNextDue
)

// headerAliases maps accepted header spellings, folded by headerKey, to
// canonical fields.
var headerAliases = map[string]csvField{
	"id":             fieldID,
	"building":       fieldBuilding,
	"x":              fieldX,
	"y":              fieldY,
	"status":         fieldStatus,
	"type":           fieldType,
	"size":           fieldSize,
	"manufacturer":   fieldManufacturer,
	"lastinspection": fieldLastInspection,
	"nextdue":        fieldNextDue,
}

var requiredFields = map[csvField]string{
	fieldID:       "id",
	fieldBuilding: "building",
	fieldX:        "x",
	fieldY:        "y",
}

// headerKey folds case and drops spaces, underscores and hyphens, so
// "Last Inspection", "last_inspection" and "lastInspection" agree.
func headerKey(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CSVStrategy loads the backup delimited document and synthesizes the
// building list from the rows.
type CSVStrategy struct {
	Location string
	Fetcher  *Fetcher
	Logger   *zap.Logger
}

func (s *CSVStrategy) Name() string { return SourceCSV }

func (s *CSVStrategy) Load(ctx context.Context) (dataset.Raw, error) {
	body, err := s.Fetcher.Fetch(ctx, s.Location)
	if err != nil {
		return dataset.Raw{}, err
	}
	exts, skipped, err := ParseCSV(body, s.logger())
	if err != nil {
		return dataset.Raw{}, err
	}
	return dataset.Raw{
		Buildings:     dataset.SynthesizeBuildings(exts),
		Extinguishers: exts,
		SkippedRows:   skipped,
	}, nil
}

func (s *CSVStrategy) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// ParseCSV decodes extinguisher rows. Rows with an empty id or an
// unparsable building, x or y are excluded and counted.
func ParseCSV(body []byte, logger *zap.Logger) ([]dataset.Extinguisher, int, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: csv: %v", ErrParseFailure, err)
	}
	if len(records) == 0 {
		return nil, 0, fmt.Errorf("%w: csv: empty document", ErrParseFailure)
	}

	columns := make(map[csvField]int)
	for i, h := range records[0] {
		f, ok := headerAliases[headerKey(h)]
		if !ok {
			continue
		}
		if _, dup := columns[f]; !dup {
			columns[f] = i
		}
	}
	for f, name := range requiredFields {
		if _, ok := columns[f]; !ok {
			return nil, 0, fmt.Errorf("%w: csv: missing %q column", ErrParseFailure, name)
		}
	}

	exts := make([]dataset.Extinguisher, 0, len(records)-1)
	skipped := 0
	for n, row := range records[1:] {
		if blankRow(row) {
			continue
		}
		get := func(f csvField) string {
			idx, ok := columns[f]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		line := n + 2
		ext, reason := buildExtinguisher(get)
		if reason != "" {
			skipped++
			logger.Warn("csv row skipped", zap.Int("line", line), zap.String("reason", reason))
			continue
		}
		exts = append(exts, ext)
	}
	return exts, skipped, nil
}

func buildExtinguisher(get func(csvField) string) (dataset.Extinguisher, string) {
	id := get(fieldID)
	if id == "" {
		return dataset.Extinguisher{}, "empty id"
	}
	building, err := parseBuildingID(get(fieldBuilding))
	if err != nil {
		return dataset.Extinguisher{}, "building: " + err.Error()
	}
	x, err := parseCoord(get(fieldX))
	if err != nil {
		return dataset.Extinguisher{}, "x: " + err.Error()
	}
	y, err := parseCoord(get(fieldY))
	if err != nil {
		return dataset.Extinguisher{}, "y: " + err.Error()
	}
	return dataset.Extinguisher{
		ID:             id,
		Building:       building,
		X:              x,
		Y:              y,
		Status:         dataset.Status(get(fieldStatus)),
		Type:           get(fieldType),
		Size:           get(fieldSize),
		Manufacturer:   get(fieldManufacturer),
		LastInspection: get(fieldLastInspection),
		NextDue:        get(fieldNextDue),
	}, ""
}

func parseBuildingID(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	if f < math.MinInt || f >= math.MaxInt+1.0 {
		return 0, fmt.Errorf("out of range: %q", s)
	}
	return int(f), nil
}

func parseCoord(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not finite: %q", s)
	}
	return f, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
