package integration

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/partner"
	"github.com/erp/wooerp/internal/domain/shared"
	zaplog "github.com/erp/wooerp/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// DefaultClientType is the type given to clients created from storefront orders
const DefaultClientType = "online"

// maxCodeAttempts bounds retries when a concurrent insert takes the same code
const maxCodeAttempts = 3

// ClientResolver finds or creates the local client of an inbound order
type ClientResolver struct {
	clients    partner.ClientRepository
	clientType string
	logger     *zap.Logger
}

// NewClientResolver creates a new ClientResolver
func NewClientResolver(clients partner.ClientRepository, clientType string, logger *zap.Logger) *ClientResolver {
	if strings.TrimSpace(clientType) == "" {
		clientType = DefaultClientType
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientResolver{clients: clients, clientType: clientType, logger: logger}
}

// Resolve returns the active client with this exact email, creating one with
// the next code of the configured type when none exists.
func (r *ClientResolver) Resolve(ctx context.Context, email string, billing integration.Address) (*partner.Client, error) {
	client, err := r.findByEmail(ctx, email)
	if err != nil || client != nil {
		return client, err
	}

	prefix := partner.ClientCodePrefix(r.clientType)
	for attempt := 1; ; attempt++ {
		maxSeq, err := r.clients.MaxCodeSequence(ctx, prefix)
		if err != nil {
			return nil, err
		}
		client, err := partner.NewClient(partner.NextClientCode(prefix, maxSeq), r.clientType, billing.FullName(), email)
		if err != nil {
			return nil, err
		}
		client.Phone = billing.Phone
		client.Address = billing.Street()
		client.City = billing.City

		err = r.clients.Create(ctx, client)
		if err == nil {
			r.log(ctx).Info("Client created from storefront order",
				zap.String("client_code", client.Code),
				zap.String("email", email),
			)
			return client, nil
		}
		if !errors.Is(err, shared.ErrAlreadyExists) || attempt >= maxCodeAttempts {
			return nil, err
		}

		// Lost a race: either the same email or the same code was inserted
		existing, findErr := r.findByEmail(ctx, email)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return existing, nil
		}
		r.log(ctx).Warn("Client code taken concurrently, retrying",
			zap.String("client_code", client.Code),
			zap.Int("attempt", attempt),
		)
	}
}

func (r *ClientResolver) findByEmail(ctx context.Context, email string) (*partner.Client, error) {
	client, err := r.clients.FindActiveByEmail(ctx, email)
	if err == nil {
		return client, nil
	}
	if shared.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

func (r *ClientResolver) log(ctx context.Context) *zap.Logger {
	return zaplog.Enrich(ctx, r.logger)
}
