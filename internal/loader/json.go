package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"extinguisher_map/internal/dataset"
)

// JSONStrategy loads the primary `{buildings, extinguishers}` document.
type JSONStrategy struct {
	Location string
	Fetcher  *Fetcher
	Logger   *zap.Logger
}

func (s *JSONStrategy) Name() string { return SourceJSON }

func (s *JSONStrategy) Load(ctx context.Context) (dataset.Raw, error) {
	body, err := s.Fetcher.Fetch(ctx, s.Location)
	if err != nil {
		return dataset.Raw{}, err
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return ParseJSON(body, logger)
}

type jsonDocument struct {
	Buildings     []json.RawMessage `json:"buildings"`
	Extinguishers []json.RawMessage `json:"extinguishers"`
}

// jsonExtinguisher accepts the building id as a number or numeric string.
type jsonExtinguisher struct {
	dataset.Extinguisher
	Building json.RawMessage `json:"building"`
}

// ParseJSON decodes the primary document. The top level must be an object;
// missing arrays become empty. Records that do not decode are excluded and
// counted in SkippedRows.
func ParseJSON(body []byte, logger *zap.Logger) (dataset.Raw, error) {
	var doc *jsonDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return dataset.Raw{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	if doc == nil {
		return dataset.Raw{}, fmt.Errorf("%w: json document is null", ErrParseFailure)
	}

	raw := dataset.Raw{
		Buildings:     make([]dataset.Building, 0, len(doc.Buildings)),
		Extinguishers: make([]dataset.Extinguisher, 0, len(doc.Extinguishers)),
	}
	for i, rec := range doc.Buildings {
		var b dataset.Building
		if err := json.Unmarshal(rec, &b); err != nil {
			raw.SkippedRows++
			logger.Warn("json building skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		raw.Buildings = append(raw.Buildings, b)
	}
	for i, rec := range doc.Extinguishers {
		ext, err := decodeExtinguisher(rec)
		if err != nil {
			raw.SkippedRows++
			logger.Warn("json extinguisher skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		raw.Extinguishers = append(raw.Extinguishers, ext)
	}
	return raw, nil
}

func decodeExtinguisher(rec json.RawMessage) (dataset.Extinguisher, error) {
	var w jsonExtinguisher
	if err := json.Unmarshal(rec, &w); err != nil {
		return dataset.Extinguisher{}, err
	}
	if w.ID == "" {
		return dataset.Extinguisher{}, fmt.Errorf("empty id")
	}
	text := string(w.Building)
	if len(text) > 0 && text[0] == '"' {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return dataset.Extinguisher{}, fmt.Errorf("building: %v", err)
		}
		text = unquoted
	}
	id, err := parseBuildingID(text)
	if err != nil {
		return dataset.Extinguisher{}, fmt.Errorf("building: %v", err)
	}
	ext := w.Extinguisher
	ext.Building = id
	return ext, nil
}
