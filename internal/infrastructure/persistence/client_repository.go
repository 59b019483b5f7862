package persistence

import (
	"context"
	"time"

	"github.com/erp/wooerp/internal/domain/partner"
	"github.com/erp/wooerp/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormClientRepository implements ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GormClientRepository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// FindByID finds a client by its ID
func (r *GormClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Client, error) {
	var model models.ClientModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "client", id.String())
	}
	return model.ToDomain(), nil
}

// FindActiveByEmail finds the oldest active client with the exact email
func (r *GormClientRepository) FindActiveByEmail(ctx context.Context, email string) (*partner.Client, error) {
	var model models.ClientModel
	if err := r.db.WithContext(ctx).
		Where("email = ? AND active = ?", email, true).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		return nil, translateError(err, "client", email)
	}
	return model.ToDomain(), nil
}

// MaxCodeSequence returns the highest running number among codes with the
// prefix. Codes whose remainder is not numeric are skipped.
func (r *GormClientRepository) MaxCodeSequence(ctx context.Context, prefix string) (int, error) {
	var codes []string
	if err := r.db.WithContext(ctx).Model(&models.ClientModel{}).
		Where("code LIKE ?", prefix+"%").
		Pluck("code", &codes).Error; err != nil {
		return 0, err
	}

	highest := 0
	for _, code := range codes {
		if seq, ok := partner.ParseClientCodeSequence(code, prefix); ok && seq > highest {
			highest = seq
		}
	}
	return highest, nil
}

// Create inserts a new client
func (r *GormClientRepository) Create(ctx context.Context, client *partner.Client) error {
	model := models.ClientModelFromDomain(client)
	return translateError(r.db.WithContext(ctx).Create(model).Error, "client", client.Code)
}

// SetExternalCustomerID stores the storefront customer id
func (r *GormClientRepository) SetExternalCustomerID(ctx context.Context, id uuid.UUID, externalID int64) error {
	result := r.db.WithContext(ctx).Model(&models.ClientModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"external_customer_id": externalID, "updated_at": time.Now()})
	return requireAffected(result, "client", id.String())
}

var _ partner.ClientRepository = (*GormClientRepository)(nil)
