package pricing

import (
	"context"
	"sync"
	"time"

	"pos-system/internal/models"
)

// MemoryPromotions is an in-memory promotion store used by tests and
// local runs. Voucher redemption runs under the store mutex so quota
// checks and decrements are one critical section.
type MemoryPromotions struct {
	mu       sync.Mutex
	auto     []models.AutomaticPromotion
	manual   []models.ManualPromotion
	vouchers map[int64]*models.Voucher
	byCode   map[string]int64
	charges  []models.TaxOrServiceCharge
}

// NewMemoryPromotions creates an empty in-memory promotion store
func NewMemoryPromotions() *MemoryPromotions {
	return &MemoryPromotions{
		vouchers: make(map[int64]*models.Voucher),
		byCode:   make(map[string]int64),
	}
}

// AddAutomatic registers an automatic promotion
func (m *MemoryPromotions) AddAutomatic(promo models.AutomaticPromotion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auto = append(m.auto, promo)
}

// AddManual registers a manual promotion
func (m *MemoryPromotions) AddManual(promo models.ManualPromotion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manual = append(m.manual, promo)
}

// AddVoucher registers a voucher
func (m *MemoryPromotions) AddVoucher(voucher models.Voucher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := voucher
	m.vouchers[v.ID] = &v
	m.byCode[v.Code] = v.ID
}

// AddCharge registers a tax or service charge
func (m *MemoryPromotions) AddCharge(charge models.TaxOrServiceCharge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges = append(m.charges, charge)
}

// Voucher returns a copy of the voucher with the given id
func (m *MemoryPromotions) Voucher(id int64) (models.Voucher, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[id]
	if !ok {
		return models.Voucher{}, false
	}
	return *v, true
}

func (m *MemoryPromotions) ActiveAutomaticPromotions(ctx context.Context, outletID int64, at time.Time) ([]models.AutomaticPromotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var promos []models.AutomaticPromotion
	for _, promo := range m.auto {
		if promo.Active && promo.OutletID == outletID && promo.InWindow(at) {
			promos = append(promos, promo)
		}
	}
	return promos, nil
}

func (m *MemoryPromotions) ActiveManualPromotion(ctx context.Context, outletID int64, customerType string) (*models.ManualPromotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, promo := range m.manual {
		if promo.OutletID == outletID && promo.AppliesTo(customerType) {
			p := promo
			return &p, nil
		}
	}
	return nil, nil
}

func (m *MemoryPromotions) VoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byCode[code]
	if !ok {
		return nil, &models.ReferenceNotFoundError{Entity: "voucher", Code: code}
	}
	v := *m.vouchers[id]
	return &v, nil
}

func (m *MemoryPromotions) RedeemVoucher(ctx context.Context, voucherID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vouchers[voucherID]
	if !ok || !v.Active || v.Quota <= 0 {
		return &models.ValidationError{
			Field:   "voucher_code",
			Message: "voucher quota exhausted",
		}
	}

	v.Quota--
	if v.Quota == 0 {
		v.Active = false
	}
	return nil
}

func (m *MemoryPromotions) RestoreVoucher(ctx context.Context, voucherID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vouchers[voucherID]
	if !ok {
		return &models.ReferenceNotFoundError{Entity: "voucher", ID: voucherID}
	}
	v.Quota++
	v.Active = true
	return nil
}

func (m *MemoryPromotions) ActiveCharges(ctx context.Context, outletID int64, customerType string) ([]models.TaxOrServiceCharge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var charges []models.TaxOrServiceCharge
	for _, charge := range m.charges {
		if charge.OutletID == outletID && charge.AppliesTo(customerType) {
			charges = append(charges, charge)
		}
	}
	return charges, nil
}
