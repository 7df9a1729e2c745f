package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pos-backend/internal/db"
)

// MasterLookup is the read surface the cart engine consumes, usually through
// the per-cart TTL cache.
type MasterLookup interface {
	GetItem(ctx context.Context, itemCode string) (*Item, error)
	GetTax(ctx context.Context, taxCode string) (*TaxMaster, error)
	GetPayment(ctx context.Context, paymentCode string) (*PaymentMaster, error)
	GetCategory(ctx context.Context, categoryCode string) (*Category, error)
}

// MasterService is the master-data collaborator: CRUD over items, taxes,
// payment methods, categories and staff for one tenant.
type MasterService interface {
	MasterLookup

	UpsertItem(ctx context.Context, item Item) (*Item, error)
	ListItems(ctx context.Context, limit, page int) ([]Item, int, error)
	DeleteItem(ctx context.Context, itemCode string) error

	UpsertTax(ctx context.Context, tax TaxMaster) (*TaxMaster, error)
	ListTaxes(ctx context.Context) ([]TaxMaster, error)
	DeleteTax(ctx context.Context, taxCode string) error

	UpsertPayment(ctx context.Context, p PaymentMaster) (*PaymentMaster, error)
	ListPayments(ctx context.Context) ([]PaymentMaster, error)
	DeletePayment(ctx context.Context, paymentCode string) error

	UpsertCategory(ctx context.Context, cat Category) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	DeleteCategory(ctx context.Context, categoryCode string) error

	UpsertStaff(ctx context.Context, staff Staff) (*Staff, error)
	GetStaff(ctx context.Context, staffID string) (*Staff, error)
	ListStaff(ctx context.Context) ([]Staff, error)
	DeleteStaff(ctx context.Context, staffID string) error
}

type masterService struct {
	tdb *db.TenantDB
}

func NewMasterService(tdb *db.TenantDB) MasterService {
	return &masterService{tdb: tdb}
}

// ── Items ────────────────────────────────────────────────────────────────────

func (s *masterService) GetItem(ctx context.Context, itemCode string) (*Item, error) {
	var it Item
	var images []byte
	err := s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT item_code, description, description_short, unit_price, tax_code,
		       category_code, is_discount_restricted, image_urls, created_at, updated_at
		FROM %s WHERE item_code = $1
	`, s.tdb.T("items")), itemCode).Scan(
		&it.ItemCode, &it.Description, &it.DescriptionShort, &it.UnitPrice, &it.TaxCode,
		&it.CategoryCode, &it.IsDiscountRestricted, &images, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound.Withf("item code %s", itemCode)
		}
		return nil, fmt.Errorf("failed to fetch item %s: %w", itemCode, err)
	}
	if err := json.Unmarshal(images, &it.ImageURLs); err != nil {
		return nil, fmt.Errorf("failed to decode image urls for item %s: %w", itemCode, err)
	}
	return &it, nil
}

func (s *masterService) UpsertItem(ctx context.Context, item Item) (*Item, error) {
	images, err := json.Marshal(item.ImageURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image urls: %w", err)
	}
	if images == nil || string(images) == "null" {
		images = []byte("[]")
	}
	_, err = s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (item_code, description, description_short, unit_price, tax_code,
		                category_code, is_discount_restricted, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (item_code) DO UPDATE SET
			description = EXCLUDED.description,
			description_short = EXCLUDED.description_short,
			unit_price = EXCLUDED.unit_price,
			tax_code = EXCLUDED.tax_code,
			category_code = EXCLUDED.category_code,
			is_discount_restricted = EXCLUDED.is_discount_restricted,
			image_urls = EXCLUDED.image_urls,
			updated_at = NOW()
	`, s.tdb.T("items")),
		item.ItemCode, item.Description, item.DescriptionShort, item.UnitPrice, item.TaxCode,
		item.CategoryCode, item.IsDiscountRestricted, images,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert item %s: %w", item.ItemCode, err)
	}
	return s.GetItem(ctx, item.ItemCode)
}

func (s *masterService) ListItems(ctx context.Context, limit, page int) ([]Item, int, error) {
	if limit <= 0 {
		limit = 100
	}
	if page < 1 {
		page = 1
	}

	var total int
	if err := s.tdb.Pool().QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", s.tdb.T("items")),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	rows, err := s.tdb.Pool().Query(ctx, fmt.Sprintf(`
		SELECT item_code, description, description_short, unit_price, tax_code,
		       category_code, is_discount_restricted, image_urls, created_at, updated_at
		FROM %s ORDER BY item_code LIMIT $1 OFFSET $2
	`, s.tdb.T("items")), limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var images []byte
		if err := rows.Scan(&it.ItemCode, &it.Description, &it.DescriptionShort, &it.UnitPrice, &it.TaxCode,
			&it.CategoryCode, &it.IsDiscountRestricted, &images, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan item: %w", err)
		}
		_ = json.Unmarshal(images, &it.ImageURLs)
		items = append(items, it)
	}
	return items, total, nil
}

func (s *masterService) DeleteItem(ctx context.Context, itemCode string) error {
	return s.deleteByKey(ctx, "items", "item_code", itemCode)
}

// deleteByKey removes one master row identified by its natural key.
func (s *masterService) deleteByKey(ctx context.Context, table, column, key string) error {
	tag, err := s.tdb.Pool().Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = $1", s.tdb.T(table), column), key)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeleteMiss.Withf("%s/%s", table, key)
	}
	return nil
}

// ── Taxes ────────────────────────────────────────────────────────────────────

func (s *masterService) GetTax(ctx context.Context, taxCode string) (*TaxMaster, error) {
	var t TaxMaster
	err := s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT tax_code, tax_no, tax_type, tax_name, rate, round_digit, round_method, created_at, updated_at
		FROM %s WHERE tax_code = $1
	`, s.tdb.T("taxes")), taxCode).Scan(
		&t.TaxCode, &t.TaxNo, &t.TaxType, &t.TaxName, &t.Rate, &t.RoundDigit, &t.RoundMethod, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaxNotFound.Withf("tax code %s", taxCode)
		}
		return nil, fmt.Errorf("failed to fetch tax %s: %w", taxCode, err)
	}
	return &t, nil
}

func (s *masterService) UpsertTax(ctx context.Context, tax TaxMaster) (*TaxMaster, error) {
	_, err := s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (tax_code, tax_no, tax_type, tax_name, rate, round_digit, round_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tax_code) DO UPDATE SET
			tax_no = EXCLUDED.tax_no,
			tax_type = EXCLUDED.tax_type,
			tax_name = EXCLUDED.tax_name,
			rate = EXCLUDED.rate,
			round_digit = EXCLUDED.round_digit,
			round_method = EXCLUDED.round_method,
			updated_at = NOW()
	`, s.tdb.T("taxes")),
		tax.TaxCode, tax.TaxNo, tax.TaxType, tax.TaxName, tax.Rate, tax.RoundDigit, tax.RoundMethod,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert tax %s: %w", tax.TaxCode, err)
	}
	return s.GetTax(ctx, tax.TaxCode)
}

func (s *masterService) ListTaxes(ctx context.Context) ([]TaxMaster, error) {
	rows, err := s.tdb.Pool().Query(ctx, fmt.Sprintf(`
		SELECT tax_code, tax_no, tax_type, tax_name, rate, round_digit, round_method, created_at, updated_at
		FROM %s ORDER BY tax_no, tax_code
	`, s.tdb.T("taxes")))
	if err != nil {
		return nil, fmt.Errorf("failed to query taxes: %w", err)
	}
	defer rows.Close()

	var taxes []TaxMaster
	for rows.Next() {
		var t TaxMaster
		if err := rows.Scan(&t.TaxCode, &t.TaxNo, &t.TaxType, &t.TaxName, &t.Rate, &t.RoundDigit, &t.RoundMethod, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tax: %w", err)
		}
		taxes = append(taxes, t)
	}
	return taxes, nil
}

func (s *masterService) DeleteTax(ctx context.Context, taxCode string) error {
	return s.deleteByKey(ctx, "taxes", "tax_code", taxCode)
}

// ── Payment methods ──────────────────────────────────────────────────────────

func (s *masterService) GetPayment(ctx context.Context, paymentCode string) (*PaymentMaster, error) {
	var p PaymentMaster
	err := s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT payment_code, description, can_refund, can_deposit_over, can_change, created_at, updated_at
		FROM %s WHERE payment_code = $1
	`, s.tdb.T("payment_methods")), paymentCode).Scan(
		&p.PaymentCode, &p.Description, &p.CanRefund, &p.CanDepositOver, &p.CanChange, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound.Withf("payment code %s", paymentCode)
		}
		return nil, fmt.Errorf("failed to fetch payment method %s: %w", paymentCode, err)
	}
	return &p, nil
}

func (s *masterService) UpsertPayment(ctx context.Context, p PaymentMaster) (*PaymentMaster, error) {
	_, err := s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (payment_code, description, can_refund, can_deposit_over, can_change)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (payment_code) DO UPDATE SET
			description = EXCLUDED.description,
			can_refund = EXCLUDED.can_refund,
			can_deposit_over = EXCLUDED.can_deposit_over,
			can_change = EXCLUDED.can_change,
			updated_at = NOW()
	`, s.tdb.T("payment_methods")),
		p.PaymentCode, p.Description, p.CanRefund, p.CanDepositOver, p.CanChange,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert payment method %s: %w", p.PaymentCode, err)
	}
	return s.GetPayment(ctx, p.PaymentCode)
}

func (s *masterService) ListPayments(ctx context.Context) ([]PaymentMaster, error) {
	rows, err := s.tdb.Pool().Query(ctx, fmt.Sprintf(`
		SELECT payment_code, description, can_refund, can_deposit_over, can_change, created_at, updated_at
		FROM %s ORDER BY payment_code
	`, s.tdb.T("payment_methods")))
	if err != nil {
		return nil, fmt.Errorf("failed to query payment methods: %w", err)
	}
	defer rows.Close()

	var payments []PaymentMaster
	for rows.Next() {
		var p PaymentMaster
		if err := rows.Scan(&p.PaymentCode, &p.Description, &p.CanRefund, &p.CanDepositOver, &p.CanChange, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (s *masterService) DeletePayment(ctx context.Context, paymentCode string) error {
	return s.deleteByKey(ctx, "payment_methods", "payment_code", paymentCode)
}

// ── Categories ───────────────────────────────────────────────────────────────

func (s *masterService) GetCategory(ctx context.Context, categoryCode string) (*Category, error) {
	var c Category
	err := s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT category_code, description, created_at, updated_at
		FROM %s WHERE category_code = $1
	`, s.tdb.T("categories")), categoryCode).Scan(&c.CategoryCode, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound.Withf("category code %s", categoryCode)
		}
		return nil, fmt.Errorf("failed to fetch category %s: %w", categoryCode, err)
	}
	return &c, nil
}

func (s *masterService) UpsertCategory(ctx context.Context, cat Category) (*Category, error) {
	_, err := s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (category_code, description)
		VALUES ($1, $2)
		ON CONFLICT (category_code) DO UPDATE SET
			description = EXCLUDED.description,
			updated_at = NOW()
	`, s.tdb.T("categories")), cat.CategoryCode, cat.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert category %s: %w", cat.CategoryCode, err)
	}
	return s.GetCategory(ctx, cat.CategoryCode)
}

func (s *masterService) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.tdb.Pool().Query(ctx, fmt.Sprintf(`
		SELECT category_code, description, created_at, updated_at FROM %s ORDER BY category_code
	`, s.tdb.T("categories")))
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.CategoryCode, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, nil
}

func (s *masterService) DeleteCategory(ctx context.Context, categoryCode string) error {
	return s.deleteByKey(ctx, "categories", "category_code", categoryCode)
}

// ── Staff ────────────────────────────────────────────────────────────────────

func (s *masterService) GetStaff(ctx context.Context, staffID string) (*Staff, error) {
	var st Staff
	err := s.tdb.Pool().QueryRow(ctx, fmt.Sprintf(`
		SELECT staff_id, staff_name, pin_hash, created_at, updated_at
		FROM %s WHERE staff_id = $1
	`, s.tdb.T("staff")), staffID).Scan(&st.StaffID, &st.StaffName, &st.PinHash, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound.Withf("staff id %s", staffID)
		}
		return nil, fmt.Errorf("failed to fetch staff %s: %w", staffID, err)
	}
	return &st, nil
}

func (s *masterService) UpsertStaff(ctx context.Context, staff Staff) (*Staff, error) {
	_, err := s.tdb.Pool().Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (staff_id, staff_name, pin_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (staff_id) DO UPDATE SET
			staff_name = EXCLUDED.staff_name,
			pin_hash = CASE WHEN EXCLUDED.pin_hash <> '' THEN EXCLUDED.pin_hash ELSE staff.pin_hash END,
			updated_at = NOW()
	`, s.tdb.T("staff")), staff.StaffID, staff.StaffName, staff.PinHash)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert staff %s: %w", staff.StaffID, err)
	}
	return s.GetStaff(ctx, staff.StaffID)
}

func (s *masterService) ListStaff(ctx context.Context) ([]Staff, error) {
	rows, err := s.tdb.Pool().Query(ctx, fmt.Sprintf(`
		SELECT staff_id, staff_name, pin_hash, created_at, updated_at FROM %s ORDER BY staff_id
	`, s.tdb.T("staff")))
	if err != nil {
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}
	defer rows.Close()

	var staff []Staff
	for rows.Next() {
		var st Staff
		if err := rows.Scan(&st.StaffID, &st.StaffName, &st.PinHash, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		staff = append(staff, st)
	}
	return staff, nil
}

func (s *masterService) DeleteStaff(ctx context.Context, staffID string) error {
	return s.deleteByKey(ctx, "staff", "staff_id", staffID)
}
