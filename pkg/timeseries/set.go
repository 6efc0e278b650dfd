package timeseries

import "context"

// Set aggregates the configured timeseries sources behind one range query.
type Set struct {
	sources []*Source
}

// OpenSet opens every path. Opening stops at the first failure and closes
// the sources opened so far.
func OpenSet(paths []string) (*Set, error) {
	set := &Set{}
	for _, path := range paths {
		src, err := Open(path)
		if err != nil {
			set.Close()
			return nil, err
		}
		set.sources = append(set.sources, src)
	}
	return set, nil
}

// Range collects rows in (t0, t1] across all sources, in source order.
func (s *Set) Range(ctx context.Context, t0, t1 float64) ([]Row, error) {
	out := []Row{}
	for _, src := range s.sources {
		rows, err := src.Range(ctx, t0, t1)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// Info returns each source's properties document tagged with its db name.
func (s *Set) Info(ctx context.Context) ([]map[string]any, error) {
	out := []map[string]any{}
	for _, src := range s.sources {
		props, err := src.Properties(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, props)
	}
	return out, nil
}

// Len returns the number of sources.
func (s *Set) Len() int {
	return len(s.sources)
}

// Close closes every source.
func (s *Set) Close() {
	for _, src := range s.sources {
		src.Close()
	}
	s.sources = nil
}
