// seed is a one-shot tool that provisions a demo tenant with master data,
// a store, a terminal, and initial stock. Safe to re-run; every write is an
// upsert.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"pos-backend/internal/config"
	"pos-backend/internal/core"
	"pos-backend/internal/db"
	"pos-backend/internal/stock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("configuration")
	}
	logger := logrus.New()
	log := logger.WithField("app", "pos-seed")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	defer pool.Close()

	gateway := db.NewGateway(pool, cfg.DBNamePrefix)
	if err := gateway.EnsureCommons(ctx); err != nil {
		log.WithError(err).Fatal("commons schema")
	}

	tenantID := envOr("SEED_TENANT_ID", "T0001")
	accounts := core.NewAccountService(gateway, cfg.SecretKey, cfg.TokenExpiry(), log)
	if _, err := accounts.RegisterTenant(ctx, tenantID, "admin", envOr("SEED_ADMIN_PASSWORD", "admin")); err != nil {
		var domainErr *core.Error
		if !errors.As(err, &domainErr) || domainErr.Kind != core.KindConflict {
			log.WithError(err).Fatal("register tenant")
		}
		log.WithField("tenant", tenantID).Info("tenant already registered")
	}

	tdb, err := gateway.Tenant(tenantID)
	if err != nil {
		log.WithError(err).Fatal("tenant handle")
	}
	masters := core.NewMasterService(tdb)

	log.Info("seeding tax masters")
	for _, tax := range []core.TaxMaster{
		{TaxCode: "01", TaxNo: 1, TaxType: core.TaxTypeExternal, TaxName: "消費税 10%", Rate: decimal.NewFromInt(10), RoundDigit: 0, RoundMethod: "Floor"},
		{TaxCode: "02", TaxNo: 2, TaxType: core.TaxTypeExternal, TaxName: "軽減税率 8%", Rate: decimal.NewFromInt(8), RoundDigit: 0, RoundMethod: "Floor"},
		{TaxCode: "11", TaxNo: 3, TaxType: core.TaxTypeInternal, TaxName: "内税 10%", Rate: decimal.NewFromInt(10), RoundDigit: 0, RoundMethod: "Floor"},
	} {
		if _, err := masters.UpsertTax(ctx, tax); err != nil {
			log.WithError(err).Fatal("seed tax")
		}
	}

	log.Info("seeding payment methods")
	for _, p := range []core.PaymentMaster{
		{PaymentCode: "01", Description: "現金", CanRefund: true, CanDepositOver: true, CanChange: true},
		{PaymentCode: "11", Description: "クレジットカード", CanRefund: true},
		{PaymentCode: "12", Description: "電子マネー", CanRefund: false},
		{PaymentCode: "21", Description: "商品券", CanDepositOver: true},
	} {
		if _, err := masters.UpsertPayment(ctx, p); err != nil {
			log.WithError(err).Fatal("seed payment method")
		}
	}

	log.Info("seeding categories and items")
	for _, cat := range []core.Category{
		{CategoryCode: "10", Description: "食品"},
		{CategoryCode: "20", Description: "飲料"},
		{CategoryCode: "30", Description: "雑貨"},
	} {
		if _, err := masters.UpsertCategory(ctx, cat); err != nil {
			log.WithError(err).Fatal("seed category")
		}
	}
	items := []core.Item{
		{ItemCode: "4901000000011", Description: "おにぎり 鮭", DescriptionShort: "おにぎり", UnitPrice: decimal.NewFromInt(150), TaxCode: "02", CategoryCode: "10"},
		{ItemCode: "4901000000028", Description: "お茶 500ml", DescriptionShort: "お茶", UnitPrice: decimal.NewFromInt(120), TaxCode: "02", CategoryCode: "20"},
		{ItemCode: "4901000000035", Description: "ビール 350ml", DescriptionShort: "ビール", UnitPrice: decimal.NewFromInt(220), TaxCode: "01", CategoryCode: "20", IsDiscountRestricted: true},
		{ItemCode: "4901000000042", Description: "乾電池 単3 4本", DescriptionShort: "乾電池", UnitPrice: decimal.NewFromInt(380), TaxCode: "01", CategoryCode: "30"},
	}
	for _, item := range items {
		if _, err := masters.UpsertItem(ctx, item); err != nil {
			log.WithError(err).Fatal("seed item")
		}
	}

	log.Info("seeding staff")
	pin, err := bcrypt.GenerateFromPassword([]byte(envOr("SEED_STAFF_PIN", "1234")), bcrypt.DefaultCost)
	if err != nil {
		log.WithError(err).Fatal("hash pin")
	}
	if _, err := masters.UpsertStaff(ctx, core.Staff{StaffID: "S001", StaffName: "店長", PinHash: string(pin)}); err != nil {
		log.WithError(err).Fatal("seed staff")
	}

	storeCode := envOr("SEED_STORE_CODE", "5678")
	counters := core.NewCounterService(tdb)
	trans := core.NewTransactionService(tdb, counters, masters, nil, nil, log)
	terminals := core.NewTerminalService(tdb, counters, trans, log)
	term, err := terminals.Create(ctx, storeCode, 1, "MainMenu")
	if err != nil {
		var domainErr *core.Error
		if !errors.As(err, &domainErr) || domainErr.Kind != core.KindConflict {
			log.WithError(err).Fatal("create terminal")
		}
		log.Info("terminal already exists, api key unchanged")
	} else {
		fmt.Printf("terminal %s api key: %s\n", term.TerminalID, term.APIKey)
	}

	log.Info("seeding initial stock")
	stocks := stock.NewService(gateway, nil, log)
	for _, item := range items {
		if _, err := stocks.Update(ctx, tenantID, storeCode, item.ItemCode,
			decimal.NewFromInt(100), stock.UpdateTypeInitial, "seed", "S001", "initial load"); err != nil {
			log.WithError(err).Fatal("seed stock")
		}
	}

	log.WithField("tenant", tenantID).Info("seed complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
