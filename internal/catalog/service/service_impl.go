package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/nextlevelcode/meterbill/internal/catalog/domain"
	"github.com/nextlevelcode/meterbill/internal/pricing"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p ServiceParam) catalogdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req catalogdomain.CreateModelRequest) (*catalogdomain.ModelPrice, error) {
	name := foldModelName(req.ModelName)
	family := pricing.ResolveFamily(name)
	if !family.Valid() {
		return nil, catalogdomain.ErrUnpricedFamily
	}
	if req.InputPrice.IsNegative() || req.OutputPrice.IsNegative() {
		return nil, catalogdomain.ErrNegativePricing
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&catalogdomain.ModelPrice{}).
		Where("model_name = ?", name).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, catalogdomain.ErrModelNameTaken
	}

	model := &catalogdomain.ModelPrice{
		ID:          s.genID.Generate(),
		ModelName:   name,
		Family:      family,
		TokenLimit:  req.TokenLimit,
		InputPrice:  req.InputPrice,
		OutputPrice: req.OutputPrice,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, err
	}
	return model, nil
}

// foldModelName normalizes a model identifier so "GPT-4o" and "gpt-4o"
// name the same catalog row.
func foldModelName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *Service) GetByName(ctx context.Context, modelName string) (*catalogdomain.ModelPrice, error) {
	var model catalogdomain.ModelPrice
	err := s.db.WithContext(ctx).First(&model, "model_name = ?", foldModelName(modelName)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogdomain.ErrModelNotFound
		}
		return nil, err
	}
	return &model, nil
}

func (s *Service) List(ctx context.Context) ([]catalogdomain.ModelPrice, error) {
	var models []catalogdomain.ModelPrice
	err := s.db.WithContext(ctx).Order("model_name").Find(&models).Error
	return models, err
}
