package loader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"extinguisher_map/internal/dataset"
)

// Source names reported in a Result.
const (
	SourceJSON  = "json"
	SourceCSV   = "csv"
	SourceEmpty = "empty"
)

// Strategy is one way of obtaining the dataset.
type Strategy interface {
	Name() string
	Load(ctx context.Context) (dataset.Raw, error)
}

// Attempt records the outcome of one strategy.
type Attempt struct {
	Source     string `json:"source"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Result is the outcome of a chain run. Source is the winning strategy or
// SourceEmpty when every strategy failed.
type Result struct {
	Raw      dataset.Raw
	Source   string
	Attempts []Attempt
}

// Chain tries strategies in order until one succeeds.
type Chain struct {
	strategies []Strategy
	timeout    time.Duration
	logger     *zap.Logger
}

// NewChain builds a chain. Each attempt is bounded by timeout.
func NewChain(logger *zap.Logger, timeout time.Duration, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{strategies: strategies, timeout: timeout, logger: logger}
}

// Load never fails: when no strategy succeeds it yields an empty dataset.
func (c *Chain) Load(ctx context.Context) Result {
	res := Result{}
	for _, s := range c.strategies {
		start := time.Now()
		raw, err := c.attempt(ctx, s)
		att := Attempt{Source: s.Name(), DurationMS: time.Since(start).Milliseconds()}
		if err == nil {
			res.Attempts = append(res.Attempts, att)
			res.Raw = raw
			res.Source = s.Name()
			c.logger.Info("dataset loaded",
				zap.String("source", s.Name()),
				zap.Int("buildings", len(raw.Buildings)),
				zap.Int("extinguishers", len(raw.Extinguishers)),
				zap.Int("skipped_rows", raw.SkippedRows),
			)
			return res
		}
		att.Error = err.Error()
		res.Attempts = append(res.Attempts, att)
		c.logger.Warn("dataset source failed, falling back", zap.String("source", s.Name()), zap.Error(err))
	}

	c.logger.Error("all dataset sources failed, starting with empty dataset", zap.Int("attempts", len(res.Attempts)))
	res.Source = SourceEmpty
	res.Raw = dataset.Raw{Buildings: []dataset.Building{}, Extinguishers: []dataset.Extinguisher{}}
	return res
}

func (c *Chain) attempt(ctx context.Context, s Strategy) (raw dataset.Raw, err error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Load(ctx)
}
