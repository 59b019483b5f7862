package integration

import (
	"context"

	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/erp/wooerp/internal/domain/integration"
	"github.com/erp/wooerp/internal/domain/partner"
	"github.com/erp/wooerp/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// ---------------------------------------------------------------------------
// Storefront mock
// ---------------------------------------------------------------------------

// MockStorefront is a mock implementation of integration.Storefront
type MockStorefront struct {
	mock.Mock
}

func (m *MockStorefront) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockStorefront) GetProduct(ctx context.Context, id int64) (*integration.ExternalProduct, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ExternalProduct), args.Error(1)
}

func (m *MockStorefront) FindProductBySKU(ctx context.Context, sku string) (*integration.ExternalProduct, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ExternalProduct), args.Error(1)
}

func (m *MockStorefront) ListProducts(ctx context.Context, page, perPage int) ([]integration.ExternalProduct, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ExternalProduct), args.Error(1)
}

func (m *MockStorefront) CreateProduct(ctx context.Context, in integration.ProductInput) (*integration.ExternalProduct, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ExternalProduct), args.Error(1)
}

func (m *MockStorefront) UpdateProduct(ctx context.Context, id int64, in integration.ProductInput) (*integration.ExternalProduct, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ExternalProduct), args.Error(1)
}

func (m *MockStorefront) TrashProduct(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStorefront) SetProductStock(ctx context.Context, id int64, quantity int) error {
	args := m.Called(ctx, id, quantity)
	return args.Error(0)
}

func (m *MockStorefront) FindCustomerByEmail(ctx context.Context, email string) (*integration.ExternalCustomer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ExternalCustomer), args.Error(1)
}

func (m *MockStorefront) CreateCustomer(ctx context.Context, in integration.CustomerInput) (*integration.ExternalCustomer, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ExternalCustomer), args.Error(1)
}

func (m *MockStorefront) CreateOrder(ctx context.Context, in integration.OrderInput) (*integration.ExternalOrder, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ExternalOrder), args.Error(1)
}

func (m *MockStorefront) UpdateOrder(ctx context.Context, id int64, in integration.OrderInput) (*integration.ExternalOrder, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ExternalOrder), args.Error(1)
}

// ---------------------------------------------------------------------------
// Repository mocks
// ---------------------------------------------------------------------------

// MockProductRepository is a mock implementation of catalog.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByCode(ctx context.Context, code string) (*catalog.Product, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByCodes(ctx context.Context, codes []string) (map[string]*catalog.Product, error) {
	args := m.Called(ctx, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByBarcode(ctx context.Context, code string) (*catalog.Product, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByExternalID(ctx context.Context, externalID int64) (*catalog.Product, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) SetExternalID(ctx context.Context, id uuid.UUID, externalID int64) error {
	args := m.Called(ctx, id, externalID)
	return args.Error(0)
}

func (m *MockProductRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (catalog.StockChange, error) {
	args := m.Called(ctx, id, quantity)
	return args.Get(0).(catalog.StockChange), args.Error(1)
}

func (m *MockProductRepository) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	args := m.Called(ctx, id, quantity)
	return args.Error(0)
}

// MockCategoryRepository is a mock implementation of catalog.CategoryRepository
type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindByName(ctx context.Context, name string) (*catalog.Category, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) Save(ctx context.Context, category *catalog.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

// MockOrderRepository is a mock implementation of trade.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByExternalID(ctx context.Context, externalOrderID int64) (*trade.Order, error) {
	args := m.Called(ctx, externalOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*trade.Order, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.Order), args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *trade.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) Update(ctx context.Context, order *trade.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to trade.OrderStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *MockOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOrderRepository) SaveSyncState(ctx context.Context, id uuid.UUID, state trade.SyncState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *MockOrderRepository) FindSyncCandidates(ctx context.Context, filter trade.SyncCandidateFilter) ([]*trade.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*trade.Order), args.Error(1)
}

func (m *MockOrderRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockSaleRepository is a mock implementation of trade.SaleRepository
type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.Sale), args.Error(1)
}

func (m *MockSaleRepository) Create(ctx context.Context, sale *trade.Sale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

func (m *MockSaleRepository) SaveSyncState(ctx context.Context, id uuid.UUID, state trade.SyncState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *MockSaleRepository) FindSyncCandidates(ctx context.Context, filter trade.SyncCandidateFilter) ([]*trade.Sale, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*trade.Sale), args.Error(1)
}

// MockClientRepository is a mock implementation of partner.ClientRepository
type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Client), args.Error(1)
}

func (m *MockClientRepository) FindActiveByEmail(ctx context.Context, email string) (*partner.Client, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Client), args.Error(1)
}

func (m *MockClientRepository) MaxCodeSequence(ctx context.Context, prefix string) (int, error) {
	args := m.Called(ctx, prefix)
	return args.Int(0), args.Error(1)
}

func (m *MockClientRepository) Create(ctx context.Context, client *partner.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

func (m *MockClientRepository) SetExternalCustomerID(ctx context.Context, id uuid.UUID, externalID int64) error {
	args := m.Called(ctx, id, externalID)
	return args.Error(0)
}

// fakeUnitOfWork runs the callback against the mocks without a transaction
type fakeUnitOfWork struct {
	repos trade.TxRepositories
	calls int
}

func (u *fakeUnitOfWork) Execute(ctx context.Context, fn func(repos trade.TxRepositories) error) error {
	u.calls++
	return fn(u.repos)
}

// Ensure mocks implement interfaces
var (
	_ integration.Storefront     = (*MockStorefront)(nil)
	_ catalog.ProductRepository  = (*MockProductRepository)(nil)
	_ catalog.CategoryRepository = (*MockCategoryRepository)(nil)
	_ trade.OrderRepository      = (*MockOrderRepository)(nil)
	_ trade.SaleRepository       = (*MockSaleRepository)(nil)
	_ partner.ClientRepository   = (*MockClientRepository)(nil)
	_ trade.UnitOfWork           = (*fakeUnitOfWork)(nil)
)
