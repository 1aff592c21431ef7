// Package fallback serves the curated, lower-trust skill summaries used when
// the evidence store has nothing for a detected skill or is unreachable.
package fallback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rowens2025/powervisualize/internal/domain/evidence"
)

// document is the on-disk layout of the fallback file
type document struct {
	Skills []evidence.FallbackSkill `yaml:"skills"`
}

// index is an immutable parsed snapshot
type index struct {
	entries []evidence.FallbackSkill
	catalog []evidence.Skill
}

// Catalog implements evidence.FallbackSource over a reloadable snapshot.
// Readers never block on Reload.
type Catalog struct {
	source Source
	logger *zap.Logger
	snap   atomic.Pointer[index]
}

// Option configures a Catalog
type Option func(*Catalog)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// New returns an empty catalog over source. Call Reload to load it.
func New(source Source, opts ...Option) *Catalog {
	c := &Catalog{source: source, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reload re-reads the source. On failure the previous snapshot stays in place.
func (c *Catalog) Reload(ctx context.Context) error {
	data, err := c.source.Read(ctx)
	if err != nil {
		return fmt.Errorf("load fallback %s: %w", c.source, err)
	}
	idx, err := parse(data)
	if err != nil {
		return fmt.Errorf("load fallback %s: %w", c.source, err)
	}
	c.snap.Store(idx)
	c.logger.Info("Fallback evidence loaded",
		zap.String("source", c.source.String()),
		zap.Int("skills", len(idx.entries)),
	)
	return nil
}

// Len returns the number of loaded entries
func (c *Catalog) Len() int {
	if idx := c.snap.Load(); idx != nil {
		return len(idx.entries)
	}
	return 0
}

// Find returns the entry for a canonical skill name, compared case-insensitively
func (c *Catalog) Find(name string) (evidence.FallbackSkill, bool) {
	idx := c.snap.Load()
	if idx == nil {
		return evidence.FallbackSkill{}, false
	}
	for _, e := range idx.entries {
		if strings.EqualFold(strings.TrimSpace(e.Name), strings.TrimSpace(name)) {
			return e, true
		}
	}
	return evidence.FallbackSkill{}, false
}

// Detect finds the entry whose name or alias occurs in the question, using
// the same precedence as store skill detection.
func (c *Catalog) Detect(question string) (evidence.FallbackSkill, bool) {
	idx := c.snap.Load()
	if idx == nil {
		return evidence.FallbackSkill{}, false
	}
	m, ok := evidence.DetectSkill(question, idx.catalog, evidence.DefaultExpansions)
	if !ok {
		return evidence.FallbackSkill{}, false
	}
	return idx.entries[m.Skill.ID-1], true
}

func parse(data []byte) (*index, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &index{}, nil
		}
		return nil, fmt.Errorf("parse fallback yaml: %w", err)
	}

	idx := &index{
		entries: make([]evidence.FallbackSkill, 0, len(doc.Skills)),
		catalog: make([]evidence.Skill, 0, len(doc.Skills)),
	}
	seen := make(map[string]struct{}, len(doc.Skills))
	for i, s := range doc.Skills {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("fallback skill %d has no name", i)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("fallback skill %q is listed twice", name)
		}
		seen[key] = struct{}{}
		for _, l := range s.ProofLinks {
			if l.URL == "" {
				return nil, fmt.Errorf("fallback skill %q has a proof link without url", name)
			}
		}

		s.Name = name
		idx.entries = append(idx.entries, s)
		idx.catalog = append(idx.catalog, evidence.Skill{
			ID:      int64(len(idx.entries)),
			Name:    name,
			Aliases: s.Aliases,
		})
	}
	return idx, nil
}

var _ evidence.FallbackSource = (*Catalog)(nil)
