package search

import (
	log "github.com/sirupsen/logrus"
)

// Index is a search backend that can also be written to.
type Index interface {
	Searcher
	IndexCards(records []CardRecord) error
	DeleteCards(ids []int64) error
}

// Service is the facade that tries the index first and falls back to the
// local scan.
type Service struct {
	index Index
	local Searcher
	async bool
}

// NewService creates a search service. index may be nil when no search
// server is configured.
func NewService(index Index, local Searcher) *Service {
	return &Service{index: index, local: local, async: true}
}

func (s *Service) Search(q Query) Response {
	if s.index != nil && s.index.Healthy() {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "meilisearch"}
		}
		log.WithError(err).Warn("search: index error, falling back to local scan")
	}

	results, total, err := s.local.Search(q)
	if err != nil {
		log.WithError(err).Error("search: local scan failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Engine: "local"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "local"}
}

// Sync pushes changed records to the index and drops removed ones.
func (s *Service) Sync(records []CardRecord, removed []int64) {
	if s.index == nil || !s.index.Healthy() || (len(records) == 0 && len(removed) == 0) {
		return
	}
	run := func() {
		if err := s.index.IndexCards(records); err != nil {
			log.WithError(err).WithField("cards", len(records)).Warn("search: index cards")
		}
		if err := s.index.DeleteCards(removed); err != nil {
			log.WithError(err).WithField("cards", len(removed)).Warn("search: delete cards")
		}
	}
	if s.async {
		go run()
		return
	}
	run()
}

// ReindexAll pushes every card of every board. Called at startup when the
// index is reachable.
func (s *Service) ReindexAll(records []CardRecord) {
	if s.index == nil || !s.index.Healthy() || len(records) == 0 {
		return
	}
	if err := s.index.IndexCards(records); err != nil {
		log.WithError(err).Warn("search: reindex cards")
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
