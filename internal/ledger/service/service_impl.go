package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/nextlevelcode/meterbill/internal/catalog/domain"
	"github.com/nextlevelcode/meterbill/internal/config"
	ledgerdomain "github.com/nextlevelcode/meterbill/internal/ledger/domain"
	obsmetrics "github.com/nextlevelcode/meterbill/internal/observability/metrics"
	"github.com/nextlevelcode/meterbill/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	CatalogSvc catalogdomain.Service
	BillingCfg *config.BillingConfigHolder
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	catalogSvc catalogdomain.Service
	billingCfg *config.BillingConfigHolder
}

func NewService(p ServiceParam) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		catalogSvc: p.CatalogSvc,
		billingCfg: p.BillingCfg,
	}
}

func (s *Service) RecordUsage(ctx context.Context, req ledgerdomain.RecordUsageRequest) (*ledgerdomain.UsageRecord, error) {
	if req.InputTokens < 0 || req.OutputTokens < 0 {
		return nil, ledgerdomain.ErrNegativeTokens
	}

	model, err := s.catalogSvc.GetByName(ctx, req.Model)
	if err != nil {
		if err == catalogdomain.ErrModelNotFound {
			return nil, ledgerdomain.ErrUnknownModel
		}
		return nil, err
	}

	cost := pricing.CompletionCost(model.Family, req.InputTokens, req.OutputTokens, model.InputPrice, model.OutputPrice)

	record := &ledgerdomain.UsageRecord{
		ID:           s.genID.Generate(),
		ClientID:     req.ClientID,
		Endpoint:     req.Endpoint,
		InputTokens:  req.InputTokens,
		OutputTokens: req.OutputTokens,
		TotalTokens:  req.InputTokens + req.OutputTokens,
		Model:        model.ModelName,
		Family:       model.Family,
		Cost:         cost,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}

	obsmetrics.Ledger().IncUsageRecord(string(model.Family))
	return record, nil
}

func (s *Service) RecordUpload(ctx context.Context, req ledgerdomain.RecordUploadRequest) (*ledgerdomain.UploadRecord, error) {
	if req.EmbeddingTokens < 0 {
		return nil, ledgerdomain.ErrNegativeTokens
	}

	model, err := s.catalogSvc.GetByName(ctx, req.Model)
	if err != nil {
		if err == catalogdomain.ErrModelNotFound {
			return nil, ledgerdomain.ErrUnknownModel
		}
		return nil, err
	}

	record := &ledgerdomain.UploadRecord{
		ID:              s.genID.Generate(),
		ClientID:        req.ClientID,
		EmbeddingTokens: req.EmbeddingTokens,
		Model:           model.ModelName,
		Family:          model.Family,
		UploadCost:      pricing.UploadCost(req.EmbeddingTokens, model.InputPrice, model.Family),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return tx.Exec(
			`UPDATE clients SET upload_tokens = upload_tokens + ? WHERE id = ?`,
			req.EmbeddingTokens,
			req.ClientID,
		).Error
	})
	if err != nil {
		return nil, err
	}

	obsmetrics.Ledger().IncUploadRecord(string(model.Family))
	return record, nil
}

// Aggregate reads both record tables inside one transaction so a
// concurrently ingested record is either fully included or fully
// excluded, never half-summed.
func (s *Service) Aggregate(ctx context.Context, clientID snowflake.ID) (*ledgerdomain.Summary, error) {
	summary := &ledgerdomain.Summary{
		RequestCost:  decimal.Zero,
		UploadCost:   decimal.Zero,
		FlatFee:      decimal.Zero,
		ClientAmount: decimal.Zero,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		since, err := lastPaidAt(tx, clientID)
		if err != nil {
			return err
		}

		reqQuery := tx.Where("client_id = ?", clientID)
		upQuery := tx.Where("client_id = ?", clientID)
		if since != nil {
			reqQuery = reqQuery.Where("created_at > ?", *since)
			upQuery = upQuery.Where("created_at > ?", *since)
		}

		if err := reqQuery.Order("created_at").Find(&summary.RequestRecords).Error; err != nil {
			return err
		}
		if err := upQuery.Order("created_at").Find(&summary.UploadRecords).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledgerdomain.ErrAggregationFailed, err)
	}

	for _, rec := range summary.RequestRecords {
		summary.RequestCost = summary.RequestCost.Add(rec.Cost)
	}
	for _, rec := range summary.UploadRecords {
		summary.UploadCost = summary.UploadCost.Add(rec.UploadCost)
	}

	flatFee := s.billingCfg.Get().FlatFee()
	summary.FlatFee = flatFee.Mul(decimal.NewFromInt(int64(len(summary.RequestRecords))))

	summary.ClientAmount = summary.RequestCost.
		Add(summary.UploadCost).
		Add(summary.FlatFee).
		Round(2)

	return summary, nil
}

// lastPaidAt defines the aggregation window boundary: records written
// after the client's most recent paid cycle are unbilled.
func lastPaidAt(tx *gorm.DB, clientID snowflake.ID) (*time.Time, error) {
	var row struct {
		PaidAt *time.Time
	}
	err := tx.Raw(
		`SELECT paid_at FROM billings
		 WHERE client_id = ? AND status = ? AND paid_at IS NOT NULL
		 ORDER BY paid_at DESC
		 LIMIT 1`,
		clientID,
		true,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.PaidAt, nil
}
