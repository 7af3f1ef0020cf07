package match

import (
	"time"

	"github.com/google/uuid"
)

// Weights — веса факторов составного балла. Сумма ожидается равной 1,
// но не форсируется: итог всё равно обрезается в 0–100.
type Weights struct {
	Price    float64
	Delivery float64
	Credit   float64
	Quantity float64
}

func DefaultWeights() Weights {
	return Weights{Price: 0.40, Delivery: 0.25, Credit: 0.20, Quantity: 0.15}
}

// SupplierOffer — сырые данные предложения поставщика до скоринга.
type SupplierOffer struct {
	SupplierID        uuid.UUID
	SupplierName      string
	InventoryID       uuid.UUID
	BearingModel      string
	Brand             string
	AvailableQuantity int32
	UnitPriceCents    int64
	CreditRating      *float64
	DeliveryDays      *int32
}

const neutralScore = 50

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ratioScore: 100 при value = 0.5·expected, 50 при value = expected,
// 0 при value ≥ 1.5·expected. Без ориентира — нейтральные 50.
func ratioScore(value, expected float64) float64 {
	if expected <= 0 {
		return neutralScore
	}
	return clamp(100 * (1.5 - value/expected))
}

func priceScore(inq Inquiry, o SupplierOffer) float64 {
	return ratioScore(float64(o.UnitPriceCents), float64(inq.ExpectedPriceCents))
}

func deliveryScore(inq Inquiry, o SupplierOffer) float64 {
	if o.DeliveryDays == nil {
		return neutralScore
	}
	return ratioScore(float64(*o.DeliveryDays), float64(inq.ExpectedDeliveryDays))
}

func creditScore(o SupplierOffer) float64 {
	if o.CreditRating == nil {
		return neutralScore
	}
	return clamp(*o.CreditRating)
}

func quantityScore(inq Inquiry, o SupplierOffer) float64 {
	if inq.Quantity <= 0 || o.AvailableQuantity >= inq.Quantity {
		return 100
	}
	return clamp(100 * float64(o.AvailableQuantity) / float64(inq.Quantity))
}

// Score считает составной балл 0–100 и причину — фактор с наибольшим
// взвешенным вкладом. EXACT_MATCH зарезервирован за полным совпадением
// модели, бренда и количества независимо от балла.
func (w Weights) Score(inq Inquiry, o SupplierOffer) (float64, Reason) {
	price := priceScore(inq, o)
	delivery := deliveryScore(inq, o)
	credit := creditScore(o)
	quantity := quantityScore(inq, o)

	score := clamp(w.Price*price + w.Delivery*delivery + w.Credit*credit + w.Quantity*quantity)

	if o.BearingModel == inq.BearingModel && o.Brand == inq.Brand && o.AvailableQuantity >= inq.Quantity {
		return score, ReasonExactMatch
	}

	reason := ReasonPriceAdvantage
	best := w.Price * price
	if v := w.Delivery * delivery; v > best {
		best, reason = v, ReasonLocationProximity
	}
	if v := w.Credit * credit; v > best {
		best, reason = v, ReasonHistoricalCooperation
	}
	if v := w.Quantity * quantity; v > best {
		reason = ReasonCapacityMatch
	}
	return score, reason
}

// NewCandidate строит кандидата из предложения.
func (w Weights) NewCandidate(inq Inquiry, o SupplierOffer, discoveredAt time.Time) Candidate {
	score, reason := w.Score(inq, o)
	return Candidate{
		SupplierID:        o.SupplierID,
		SupplierName:      o.SupplierName,
		InventoryID:       o.InventoryID,
		AvailableQuantity: o.AvailableQuantity,
		UnitPriceCents:    o.UnitPriceCents,
		MatchScore:        score,
		CreditRating:      o.CreditRating,
		DeliveryDays:      o.DeliveryDays,
		MatchReason:       reason,
		DiscoveredAt:      discoveredAt,
	}
}

// ranksBefore — детерминированный порядок выбора: балл по убыванию,
// затем цена по возрастанию, срок поставки по возрастанию (нет — +∞),
// кредитный рейтинг по убыванию (нет — 0), DiscoveredAt по возрастанию.
func ranksBefore(a, b Candidate) bool {
	if a.MatchScore != b.MatchScore {
		return a.MatchScore > b.MatchScore
	}
	if a.UnitPriceCents != b.UnitPriceCents {
		return a.UnitPriceCents < b.UnitPriceCents
	}
	ad, bd := deliveryOrInf(a), deliveryOrInf(b)
	if ad != bd {
		return ad < bd
	}
	ac, bc := creditOrZero(a), creditOrZero(b)
	if ac != bc {
		return ac > bc
	}
	return a.DiscoveredAt.Before(b.DiscoveredAt)
}

func deliveryOrInf(c Candidate) int64 {
	if c.DeliveryDays == nil {
		return int64(1) << 62
	}
	return int64(*c.DeliveryDays)
}

func creditOrZero(c Candidate) float64 {
	if c.CreditRating == nil {
		return 0
	}
	return *c.CreditRating
}

// SelectBest возвращает единственного воспроизводимого победителя для
// фиксированного набора кандидатов; порядок вставки не влияет на выбор.
func SelectBest(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if ranksBefore(c, best) {
			best = c
		}
	}
	return best, true
}
