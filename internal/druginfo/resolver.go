package druginfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrUpstream = errors.New("drug information service failed")

const (
	DefaultBatchSize   = 5
	defaultParallelism = 4
	parseFailure       = "Failed to parse drug details"
)

type Details struct {
	Medicine    string   `json:"medicine" bson:"medicine"`
	DrugNames   []string `json:"drugNames,omitempty" bson:"drugNames,omitempty"`
	SideEffects []string `json:"sideEffects,omitempty" bson:"sideEffects,omitempty"`
	Remedies    []string `json:"remedies,omitempty" bson:"remedies,omitempty"`
	Description string   `json:"description,omitempty" bson:"description,omitempty"`
	Precautions []string `json:"precautions,omitempty" bson:"precautions,omitempty"`
	Error       string   `json:"error,omitempty" bson:"-"`
}

func placeholder(name string) *Details {
	return &Details{Medicine: name, Error: parseFailure}
}

// Cache stores resolved details keyed by lowercase medicine name.
type Cache interface {
	Get(ctx context.Context, keys []string) (map[string]*Details, error)
	Put(ctx context.Context, entries map[string]*Details) error
}

type Resolver struct {
	gen       Generator
	cache     Cache
	batchSize int
	parallel  int
	logger    zerolog.Logger
}

// NewResolver returns a resolver that queries gen in batches of batchSize.
// cache may be nil.
func NewResolver(gen Generator, cache Cache, batchSize int, logger zerolog.Logger) *Resolver {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Resolver{gen: gen, cache: cache, batchSize: batchSize, parallel: defaultParallelism, logger: logger}
}

func cacheKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve returns one entry per distinct name, in input order. A batch the
// model answers with unparsable output yields placeholders for its names.
func (r *Resolver) Resolve(ctx context.Context, names []string) ([]*Details, error) {
	names = NormalizeNames(names)
	if len(names) == 0 {
		return nil, nil
	}

	found := r.cached(ctx, names)
	var missing []string
	for _, n := range names {
		if _, ok := found[cacheKey(n)]; !ok {
			missing = append(missing, n)
		}
	}

	batches := chunk(missing, r.batchSize)
	results := make([]map[string]*Details, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			text, err := r.gen.Generate(gctx, BuildPrompt(batch))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUpstream, err)
			}
			results[i] = r.parseBatch(text, batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fresh := make(map[string]*Details)
	for _, res := range results {
		for k, d := range res {
			found[k] = d
			if d.Error == "" {
				fresh[k] = d
			}
		}
	}
	r.store(ctx, fresh)

	out := make([]*Details, 0, len(names))
	for _, n := range names {
		out = append(out, found[cacheKey(n)])
	}
	return out, nil
}

func (r *Resolver) cached(ctx context.Context, names []string) map[string]*Details {
	found := make(map[string]*Details)
	if r.cache == nil {
		return found
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = cacheKey(n)
	}
	hits, err := r.cache.Get(ctx, keys)
	if err != nil {
		r.logger.Warn().Err(err).Msg("drug cache lookup failed")
		return found
	}
	for k, d := range hits {
		found[k] = d
	}
	return found
}

func (r *Resolver) store(ctx context.Context, entries map[string]*Details) {
	if r.cache == nil || len(entries) == 0 {
		return
	}
	if err := r.cache.Put(ctx, entries); err != nil {
		r.logger.Warn().Err(err).Int("entries", len(entries)).Msg("drug cache write failed")
	}
}

var fencePattern = regexp.MustCompile("```(?:json)?")

// parseBatch maps model output onto the requested names. Entries are matched
// by name first. An unmatched name falls back to the entry at its position
// unless that entry was already claimed by another name.
func (r *Resolver) parseBatch(text string, batch []string) map[string]*Details {
	out := make(map[string]*Details, len(batch))

	var parsed []*Details
	if err := json.Unmarshal([]byte(strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))), &parsed); err != nil {
		r.logger.Warn().Err(err).Strs("medicines", batch).Msg("unparsable drug details")
		for _, n := range batch {
			out[cacheKey(n)] = placeholder(n)
		}
		return out
	}

	byName := make(map[string]int, len(parsed))
	for i, d := range parsed {
		if d == nil {
			continue
		}
		if _, dup := byName[cacheKey(d.Medicine)]; !dup {
			byName[cacheKey(d.Medicine)] = i
		}
	}
	claimed := make(map[int]bool, len(batch))
	for _, n := range batch {
		if i, ok := byName[cacheKey(n)]; ok {
			claimed[i] = true
		}
	}

	for i, n := range batch {
		idx, ok := byName[cacheKey(n)]
		if !ok && len(parsed) == len(batch) && parsed[i] != nil && !claimed[i] {
			idx, ok = i, true
			claimed[i] = true
		}
		if !ok {
			out[cacheKey(n)] = placeholder(n)
			continue
		}
		d := parsed[idx]
		if d.Medicine == "" {
			d.Medicine = n
		}
		d.Error = ""
		out[cacheKey(n)] = d
	}
	return out
}

func chunk(names []string, size int) [][]string {
	var out [][]string
	for len(names) > size {
		out = append(out, names[:size])
		names = names[size:]
	}
	if len(names) > 0 {
		out = append(out, names)
	}
	return out
}
