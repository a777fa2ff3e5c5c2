package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/nextlevelcode/meterbill/internal/client/domain"
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

func NewService(p ServiceParam) clientdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req clientdomain.CreateClientRequest) (*clientdomain.Client, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&clientdomain.Client{}).
		Where("email = ?", req.Email).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, clientdomain.ErrEmailTaken
	}

	limit := req.MonthlyLimit
	if limit <= 0 {
		limit = 2000
	}

	client := &clientdomain.Client{
		ID:           s.genID.Generate(),
		Name:         req.Name,
		Email:        req.Email,
		MonthlyLimit: limit,
		Active:       true,
	}
	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*clientdomain.Client, error) {
	var client clientdomain.Client
	err := s.db.WithContext(ctx).First(&client, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, clientdomain.ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (s *Service) Patch(ctx context.Context, id snowflake.ID, patch clientdomain.ClientPatch) (*clientdomain.Client, error) {
	if patch.Empty() {
		return nil, clientdomain.ErrEmptyPatch
	}

	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if patch.MonthlyLimit != nil {
		updates["monthly_limit"] = *patch.MonthlyLimit
	}
	if patch.Active != nil {
		updates["active"] = *patch.Active
	}

	res := s.db.WithContext(ctx).Model(&clientdomain.Client{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, clientdomain.ErrClientNotFound
	}
	return s.Get(ctx, id)
}

// Delete enumerates dependent rows explicitly instead of relying on an
// implicit object-graph cascade.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`DELETE FROM clients WHERE id = ?`, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return clientdomain.ErrClientNotFound
		}
		for _, stmt := range []string{
			`DELETE FROM api_keys WHERE client_id = ?`,
			`DELETE FROM usage_records WHERE client_id = ?`,
			`DELETE FROM upload_records WHERE client_id = ?`,
			`DELETE FROM billings WHERE client_id = ?`,
		} {
			if err := tx.Exec(stmt, id).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) error {
	res := s.db.WithContext(ctx).Model(&clientdomain.Client{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return clientdomain.ErrClientNotFound
	}
	return nil
}

func (s *Service) CreateKey(ctx context.Context, clientID snowflake.ID) (string, error) {
	if _, err := s.Get(ctx, clientID); err != nil {
		return "", err
	}

	raw, err := clientdomain.NewRawAPIKey()
	if err != nil {
		return "", err
	}

	key := &clientdomain.APIKey{
		ID:       s.genID.Generate(),
		ClientID: clientID,
		KeyHash:  clientdomain.HashAPIKey(raw),
		Active:   true,
	}
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return "", err
	}

	s.log.Info("api key created", zap.String("client_id", clientID.String()))
	return raw, nil
}

func (s *Service) Authenticate(ctx context.Context, rawKey string) (*clientdomain.Client, error) {
	if rawKey == "" {
		return nil, clientdomain.ErrInvalidAPIKey
	}

	var key clientdomain.APIKey
	err := s.db.WithContext(ctx).
		First(&key, "key_hash = ? AND active = ?", clientdomain.HashAPIKey(rawKey), true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, clientdomain.ErrInvalidAPIKey
		}
		return nil, err
	}

	client, err := s.Get(ctx, key.ClientID)
	if err != nil {
		if errors.Is(err, clientdomain.ErrClientNotFound) {
			return nil, clientdomain.ErrInvalidAPIKey
		}
		return nil, err
	}
	if !client.Active {
		return nil, clientdomain.ErrInvalidAPIKey
	}
	return client, nil
}
