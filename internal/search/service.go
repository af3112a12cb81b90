// Package search executes structured queries: normalize, translate, run
// against the cluster, and map the response back to IDs and facet counts.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/contentdex/contentdex/internal/domain/query"
	"github.com/contentdex/contentdex/internal/indexer"
	"github.com/contentdex/contentdex/internal/logger"
	"github.com/contentdex/contentdex/internal/results"
	"github.com/contentdex/contentdex/internal/translator"
)

// Service runs queries against the per-site content indices.
type Service struct {
	es          Backend
	translator  *translator.Translator
	results     *results.Mapper
	indexPrefix string
	log         *zap.Logger
}

// New creates a search service.
func New(es Backend, tr *translator.Translator, rm *results.Mapper, indexPrefix string, log *zap.Logger) *Service {
	return &Service{es: es, translator: tr, results: rm, indexPrefix: indexPrefix, log: log}
}

// Query validates and executes one query against a site's indices.
func (s *Service) Query(ctx context.Context, site int, spec query.Spec) (*query.Result, error) {
	if site < 1 {
		site = 1
	}
	if err := spec.Normalize(); err != nil {
		return nil, err
	}

	body, err := s.translator.Translate(spec)
	if err != nil {
		return nil, err
	}

	resp, err := s.es.Search(ctx, s.target(site, spec.Types), body)
	if err != nil {
		return nil, err
	}

	res, err := s.results.Map(spec, resp)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.log).Debug("query executed",
		zap.Int("site", site),
		zap.Int64("total", res.Total),
		zap.Int("returned", len(res.IDs)),
		zap.Int("took_ms", resp.Took),
	)
	return res, nil
}

// target picks the index expression: the named type indices when the query
// restricts types, otherwise a wildcard over all of the site's indices.
func (s *Service) target(site int, types []string) string {
	if len(types) == 0 {
		return indexer.IndexName(s.indexPrefix, "*", site)
	}
	indices := make([]string, len(types))
	for i, t := range types {
		indices[i] = indexer.IndexName(s.indexPrefix, t, site)
	}
	return strings.Join(indices, ",")
}
