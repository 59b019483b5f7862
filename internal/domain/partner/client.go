package partner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/google/uuid"
)

// Client is a customer of the business, local or coming from the storefront
type Client struct {
	shared.BaseEntity
	Code               string
	Type               string
	Name               string
	Email              string
	Phone              string
	Address            string
	City               string
	Active             bool
	ExternalCustomerID *int64
}

// NewClient creates an active client. The code is assigned by the caller
// through NextClientCode.
func NewClient(code, clientType, name, email string) (*Client, error) {
	if strings.TrimSpace(code) == "" {
		return nil, shared.NewValidationError("code", "client code cannot be empty")
	}
	if strings.TrimSpace(clientType) == "" {
		return nil, shared.NewValidationError("type", "client type cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		name = email
	}
	return &Client{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Type:       clientType,
		Name:       strings.TrimSpace(name),
		Email:      email,
		Active:     true,
	}, nil
}

// ClientCodePrefix returns the code prefix for a client type: its first three
// letters, uppercased.
func ClientCodePrefix(clientType string) string {
	var b strings.Builder
	for _, r := range clientType {
		if !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if b.Len() >= 3 {
			break
		}
	}
	return b.String()
}

// NextClientCode builds the code that follows maxSequence for the prefix,
// e.g. ("ONL", 7) -> "ONL008"
func NextClientCode(prefix string, maxSequence int) string {
	return fmt.Sprintf("%s%03d", prefix, maxSequence+1)
}

// ParseClientCodeSequence extracts the running number from a code with the
// given prefix. ok is false when the remainder is not numeric.
func ParseClientCodeSequence(code, prefix string) (seq int, ok bool) {
	if !strings.HasPrefix(code, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(code[len(prefix):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ClientRepository defines the interface for client persistence
type ClientRepository interface {
	// FindByID finds a client by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Client, error)

	// FindActiveByEmail finds an active client by exact email match
	FindActiveByEmail(ctx context.Context, email string) (*Client, error)

	// MaxCodeSequence returns the highest running number among codes with the prefix, 0 if none
	MaxCodeSequence(ctx context.Context, prefix string) (int, error)

	// Create inserts a new client
	Create(ctx context.Context, client *Client) error

	// SetExternalCustomerID stores the storefront customer id
	SetExternalCustomerID(ctx context.Context, id uuid.UUID, externalID int64) error
}
