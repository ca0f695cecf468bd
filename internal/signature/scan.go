package signature

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Source is one script resource whose content can be read on demand.
type Source interface {
	URL() string
	Content(ctx context.Context) (string, error)
}

// DefaultConcurrency bounds content reads when the scanner is built with a
// non-positive limit.
const DefaultConcurrency = 8

// Scanner reads script sources concurrently and classifies each one.
type Scanner struct {
	concurrency int
}

// NewScanner returns a Scanner that reads at most concurrency sources at once.
func NewScanner(concurrency int) *Scanner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scanner{concurrency: concurrency}
}

// Scan classifies every source and returns verdicts in source order. Sources
// whose content cannot be read, or is empty, are left out of the result.
func (s *Scanner) Scan(ctx context.Context, sources []Source) []Verdict {
	results := make([]*Verdict, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			content, err := src.Content(gctx)
			if err != nil {
				slog.Debug("script content unavailable", "url", src.URL(), "error", err)
				return nil
			}
			if content == "" {
				return nil
			}
			v := NewVerdict(src.URL(), content)
			results[i] = &v
			return nil
		})
	}
	_ = g.Wait()

	verdicts := make([]Verdict, 0, len(sources))
	for _, v := range results {
		if v != nil {
			verdicts = append(verdicts, *v)
		}
	}
	if skipped := len(sources) - len(verdicts); skipped > 0 {
		slog.Info("scan skipped unavailable scripts", "skipped", skipped, "scanned", len(verdicts))
	}
	return verdicts
}

// Summary counts verdicts by classification.
type Summary struct {
	Scripts int `json:"scripts"`
	Clean   int `json:"clean"`
	Sketchy int `json:"sketchy"`
}

// Summarize tallies verdicts.
func Summarize(verdicts []Verdict) Summary {
	s := Summary{Scripts: len(verdicts)}
	for _, v := range verdicts {
		if v.Classification == Sketchy {
			s.Sketchy++
		} else {
			s.Clean++
		}
	}
	return s
}
