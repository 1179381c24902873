package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/blog/ports"
)

// MinTrends is the fewest candidates the topic stage can choose between.
const MinTrends = 2

// FallbackTrends asks each source in turn and returns the first result with
// at least MinTrends candidates.
type FallbackTrends struct {
	sources []ports.TrendSource
}

// NewFallbackTrends creates a fallback chain over sources.
func NewFallbackTrends(sources ...ports.TrendSource) *FallbackTrends {
	return &FallbackTrends{sources: sources}
}

func (f *FallbackTrends) Trending(ctx context.Context) ([]blog.TrendCandidate, error) {
	var errs []error
	for i, src := range f.sources {
		trends, err := src.Trending(ctx)
		if err == nil && len(trends) >= MinTrends {
			return trends, nil
		}
		if err == nil {
			err = fmt.Errorf("source %d returned %d candidates", i+1, len(trends))
		}
		slog.Warn("sources: trend source failed, trying next", "index", i, "err", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, errors.New("no trend sources configured")
	}
	return nil, errors.Join(errs...)
}

// TrendEnv is the expression environment for trend filters.
type TrendEnv struct {
	Query    string
	Link     string
	Position int // 1-based rank before filtering
}

// FilteredTrends drops candidates rejected by a boolean expression, e.g.
// `len(Query) > 10 && !(Query contains "sponsored")`.
type FilteredTrends struct {
	src     ports.TrendSource
	program *vm.Program
	source  string
}

// NewFilteredTrends compiles expression against TrendEnv.
func NewFilteredTrends(src ports.TrendSource, expression string) (*FilteredTrends, error) {
	program, err := expr.Compile(expression, expr.Env(TrendEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile trend filter %q: %w", expression, err)
	}
	return &FilteredTrends{src: src, program: program, source: expression}, nil
}

func (f *FilteredTrends) Trending(ctx context.Context) ([]blog.TrendCandidate, error) {
	trends, err := f.src.Trending(ctx)
	if err != nil {
		return nil, err
	}
	out := trends[:0:0]
	for i, t := range trends {
		res, err := expr.Run(f.program, TrendEnv{Query: t.Query, Link: t.Link, Position: i + 1})
		if err != nil {
			return nil, fmt.Errorf("evaluate trend filter %q: %w", f.source, err)
		}
		if keep, _ := res.(bool); keep {
			out = append(out, t)
		}
	}
	if dropped := len(trends) - len(out); dropped > 0 {
		slog.Info("sources: trend filter applied", "kept", len(out), "dropped", dropped)
	}
	return out, nil
}
