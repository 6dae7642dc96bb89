package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pos-system/internal/database"
	"pos-system/internal/models"
)

// PostgresPromotions is the database-backed promotion store
type PostgresPromotions struct {
	db *database.DB
}

// NewPostgresPromotions creates a promotion store on the shared pool
func NewPostgresPromotions(db *database.DB) *PostgresPromotions {
	return &PostgresPromotions{db: db}
}

func (p *PostgresPromotions) ActiveAutomaticPromotions(ctx context.Context, outletID int64, at time.Time) ([]models.AutomaticPromotion, error) {
	rows, err := p.db.Query(ctx, database.GetActiveAutoPromotionsSQL, outletID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to query automatic promotions: %w", err)
	}
	defer rows.Close()

	var promos []models.AutomaticPromotion
	for rows.Next() {
		var promo models.AutomaticPromotion
		if err := rows.Scan(&promo.ID, &promo.Name, &promo.OutletID, &promo.Condition,
			&promo.Type, &promo.Value, &promo.StartsAt, &promo.EndsAt, &promo.Active); err != nil {
			return nil, fmt.Errorf("failed to scan automatic promotion: %w", err)
		}
		promos = append(promos, promo)
	}
	return promos, rows.Err()
}

func (p *PostgresPromotions) ActiveManualPromotion(ctx context.Context, outletID int64, customerType string) (*models.ManualPromotion, error) {
	var promo models.ManualPromotion
	err := p.db.QueryRow(ctx, database.GetActiveManualPromotionSQL, outletID, customerType).Scan(
		&promo.ID, &promo.Name, &promo.OutletID, &promo.CustomerType,
		&promo.Type, &promo.Value, &promo.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query manual promotion: %w", err)
	}
	return &promo, nil
}

func (p *PostgresPromotions) VoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	var outletIDs []byte
	err := p.db.QueryRow(ctx, database.GetVoucherByCodeSQL, code).Scan(
		&voucher.ID, &voucher.Code, &voucher.Type, &voucher.Value, &voucher.Quota,
		&voucher.StartsAt, &voucher.EndsAt, &outletIDs, &voucher.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &models.ReferenceNotFoundError{Entity: "voucher", Code: code}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query voucher: %w", err)
	}

	if len(outletIDs) > 0 {
		if err := json.Unmarshal(outletIDs, &voucher.OutletIDs); err != nil {
			return nil, fmt.Errorf("failed to decode voucher outlet scope: %w", err)
		}
	}
	return &voucher, nil
}

// RedeemVoucher decrements the quota and flips the activation flag in one
// guarded statement, so concurrent redemptions can never exceed the quota.
func (p *PostgresPromotions) RedeemVoucher(ctx context.Context, voucherID int64) error {
	var remaining int
	err := p.db.QueryRow(ctx, database.RedeemVoucherSQL, voucherID).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.ValidationError{
			Field:   "voucher_code",
			Message: "voucher quota exhausted",
		}
	}
	if err != nil {
		return fmt.Errorf("failed to redeem voucher %d: %w", voucherID, err)
	}
	return nil
}

// RestoreVoucher returns one quota unit and reactivates the voucher
func (p *PostgresPromotions) RestoreVoucher(ctx context.Context, voucherID int64) error {
	var remaining int
	err := p.db.QueryRow(ctx, database.RestoreVoucherSQL, voucherID).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.ReferenceNotFoundError{Entity: "voucher", ID: voucherID}
	}
	if err != nil {
		return fmt.Errorf("failed to restore voucher %d: %w", voucherID, err)
	}
	return nil
}

func (p *PostgresPromotions) ActiveCharges(ctx context.Context, outletID int64, customerType string) ([]models.TaxOrServiceCharge, error) {
	rows, err := p.db.Query(ctx, database.GetActiveChargesSQL, outletID, customerType)
	if err != nil {
		return nil, fmt.Errorf("failed to query charges: %w", err)
	}
	defer rows.Close()

	var charges []models.TaxOrServiceCharge
	for rows.Next() {
		var charge models.TaxOrServiceCharge
		var menuItemIDs []byte
		if err := rows.Scan(&charge.ID, &charge.Name, &charge.Kind, &charge.Percentage,
			&charge.FixedFee, &charge.OutletID, &charge.CustomerType, &menuItemIDs, &charge.Active); err != nil {
			return nil, fmt.Errorf("failed to scan charge: %w", err)
		}
		if len(menuItemIDs) > 0 {
			if err := json.Unmarshal(menuItemIDs, &charge.MenuItemIDs); err != nil {
				return nil, fmt.Errorf("failed to decode charge menu item scope: %w", err)
			}
		}
		charges = append(charges, charge)
	}
	return charges, rows.Err()
}
