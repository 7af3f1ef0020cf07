package match

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusMatching  Status = "MATCHING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusTimeout   Status = "TIMEOUT"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

type Stage string

const (
	StageInitializing       Stage = "INITIALIZING"
	StageSearchingInventory Stage = "SEARCHING_INVENTORY"
	StageScoringCandidates  Stage = "SCORING_CANDIDATES"
	StageNotifyingSuppliers Stage = "NOTIFYING_SUPPLIERS"
	StageWaitingForResponse Stage = "WAITING_FOR_RESPONSE"
	StageCompleted          Stage = "COMPLETED"
)

type Reason string

const (
	ReasonExactMatch            Reason = "EXACT_MATCH"
	ReasonSimilarProduct        Reason = "SIMILAR_PRODUCT"
	ReasonLocationProximity     Reason = "LOCATION_PROXIMITY"
	ReasonHistoricalCooperation Reason = "HISTORICAL_COOPERATION"
	ReasonPriceAdvantage        Reason = "PRICE_ADVANTAGE"
	ReasonQualityMatch          Reason = "QUALITY_MATCH"
	ReasonCapacityMatch         Reason = "CAPACITY_MATCH"
)

// Inquiry — запрос покупателя; неизменяем после старта подбора.
type Inquiry struct {
	BearingModel           string    `json:"bearing_model"`
	Brand                  string    `json:"brand"`
	Quantity               int32     `json:"quantity"`
	ExpectedPriceCents     int64     `json:"expected_price_cents"`
	ExpectedDeliveryDays   int32     `json:"expected_delivery_days"`
	QualityRequirement     string    `json:"quality_requirement,omitempty"`
	AdditionalRequirements string    `json:"additional_requirements,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

// Candidate — пара поставщик/позиция, предложенная как возможное
// исполнение запроса. Ключ в пуле — SupplierID.
type Candidate struct {
	SupplierID        uuid.UUID `json:"supplier_id"`
	SupplierName      string    `json:"supplier_name"`
	InventoryID       uuid.UUID `json:"inventory_id"`
	AvailableQuantity int32     `json:"available_quantity"`
	UnitPriceCents    int64     `json:"unit_price_cents"`
	MatchScore        float64   `json:"match_score"`
	CreditRating      *float64  `json:"credit_rating,omitempty"`
	DeliveryDays      *int32    `json:"delivery_days,omitempty"`
	MatchReason       Reason    `json:"match_reason"`
	DiscoveredAt      time.Time `json:"discovered_at"`
	IsNotified        bool      `json:"is_notified"`
}

type Progress struct {
	SearchedCount int32 `json:"searched_count"`
	FoundCount    int32 `json:"found_count"`
	NotifiedCount int32 `json:"notified_count"`
	Stage         Stage `json:"stage"`
	Percentage    int32 `json:"percentage"`
}

// State — жизненный цикл подбора по одному запросу.
type State struct {
	InquiryID          uuid.UUID   `json:"inquiry_id"`
	UserID             uuid.UUID   `json:"user_id"`
	Inquiry            Inquiry     `json:"inquiry"`
	Status             Status      `json:"status"`
	Candidates         []Candidate `json:"candidates"`
	SelectedSupplierID *uuid.UUID  `json:"selected_supplier_id,omitempty"`
	StartedAt          time.Time   `json:"started_at"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
	ExpiresAt          *time.Time  `json:"expires_at,omitempty"`
	Progress           Progress    `json:"progress"`
	Notes              string      `json:"notes,omitempty"`
}

func (s *State) findCandidate(supplierID uuid.UUID) *Candidate {
	for i := range s.Candidates {
		if s.Candidates[i].SupplierID == supplierID {
			return &s.Candidates[i]
		}
	}
	return nil
}

// upsertCandidate держит пул ограниченным (один кандидат на поставщика)
// и монотонно улучшающимся: замена только на строго больший балл либо
// на равный балл с более свежим DiscoveredAt.
func (s *State) upsertCandidate(c Candidate) bool {
	existing := s.findCandidate(c.SupplierID)
	if existing == nil {
		s.Candidates = append(s.Candidates, c)
		return true
	}
	if c.MatchScore > existing.MatchScore ||
		(c.MatchScore == existing.MatchScore && c.DiscoveredAt.After(existing.DiscoveredAt)) {
		*existing = c
		return true
	}
	return false
}

func (s *State) clone() *State {
	cp := *s
	cp.Candidates = make([]Candidate, len(s.Candidates))
	copy(cp.Candidates, s.Candidates)
	if s.SelectedSupplierID != nil {
		v := *s.SelectedSupplierID
		cp.SelectedSupplierID = &v
	}
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		cp.CompletedAt = &v
	}
	if s.ExpiresAt != nil {
		v := *s.ExpiresAt
		cp.ExpiresAt = &v
	}
	return &cp
}
