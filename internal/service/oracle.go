package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/oracle"
)

// PriceUpdate is one entry of a batch oracle update.
type PriceUpdate struct {
	SubjectID uint64
	Rank      uint64
	Score     decimal.Decimal
}

// PriceView is the external rendering of one oracle reading.
type PriceView struct {
	SubjectID uint64
	Rank      uint64
	Score     decimal.Decimal
	UpdatedAt time.Time
	Stale     bool
}

// OracleService fronts the price oracle for the handler layer.
type OracleService struct {
	oracle *oracle.Oracle
}

// NewOracleService creates a new OracleService.
func NewOracleService(o *oracle.Oracle) *OracleService {
	return &OracleService{oracle: o}
}

// Update applies a batch of readings. Updater gating happens at the
// handler layer; malformed batches are rejected by the oracle.
func (s *OracleService) Update(updates []PriceUpdate) error {
	ids := make([]uint64, len(updates))
	ranks := make([]uint64, len(updates))
	scores := make([]decimal.Decimal, len(updates))
	for i, u := range updates {
		ids[i] = u.SubjectID
		ranks[i] = u.Rank
		scores[i] = u.Score
	}
	return s.oracle.UpdateAll(ids, ranks, scores)
}

// Price returns the stored reading for a subject with its staleness
// flag. ok is false for a subject the oracle has never seen.
func (s *OracleService) Price(subjectID uint64) (PriceView, bool) {
	p, ok := s.oracle.Point(subjectID)
	if !ok {
		return PriceView{}, false
	}
	_, stale := s.oracle.GetPrice(subjectID)
	return PriceView{
		SubjectID: p.SubjectID,
		Rank:      p.Rank,
		Score:     p.Score,
		UpdatedAt: p.UpdatedAt,
		Stale:     stale,
	}, true
}
