package models

import (
	"github.com/erp/wooerp/internal/domain/partner"
)

// ClientModel is the persistence model for the Client domain entity.
type ClientModel struct {
	BaseModel
	Code               string `gorm:"type:varchar(20);not null;uniqueIndex:idx_clients_code"`
	Type               string `gorm:"type:varchar(30);not null;index"`
	Name               string `gorm:"type:varchar(200);not null"`
	Email              string `gorm:"type:varchar(200);index"`
	Phone              string `gorm:"type:varchar(50)"`
	Address            string `gorm:"type:text"`
	City               string `gorm:"type:varchar(100)"`
	Active             bool   `gorm:"not null;default:true"`
	ExternalCustomerID *int64 `gorm:"index"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client entity.
func (m *ClientModel) ToDomain() *partner.Client {
	return &partner.Client{
		BaseEntity:         m.BaseModel.ToDomain(),
		Code:               m.Code,
		Type:               m.Type,
		Name:               m.Name,
		Email:              m.Email,
		Phone:              m.Phone,
		Address:            m.Address,
		City:               m.City,
		Active:             m.Active,
		ExternalCustomerID: m.ExternalCustomerID,
	}
}

// FromDomain populates the persistence model from a domain Client entity.
func (m *ClientModel) FromDomain(c *partner.Client) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Code = c.Code
	m.Type = c.Type
	m.Name = c.Name
	m.Email = c.Email
	m.Phone = c.Phone
	m.Address = c.Address
	m.City = c.City
	m.Active = c.Active
	m.ExternalCustomerID = c.ExternalCustomerID
}

// ClientModelFromDomain creates a new persistence model from a domain Client entity.
func ClientModelFromDomain(c *partner.Client) *ClientModel {
	m := &ClientModel{}
	m.FromDomain(c)
	return m
}
