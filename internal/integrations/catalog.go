package integrations

import (
	"context"
	"fmt"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/schedule"
)

// Catalog looks up agreements and products on the sales side
type Catalog interface {
	GetAgreementContext(ctx context.Context, agreementID string) (schedule.AgreementContext, error)
	GetProductMeta(ctx context.Context, product string) (ProductMeta, error)
}

// CatalogClient is the HTTP implementation of Catalog
type CatalogClient struct {
	client
}

// NewCatalogClient creates a catalog client
func NewCatalogClient(baseURL, token string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{client: newClient(baseURL, token, timeout)}
}

// GetAgreementContext calls GET /agreements/{id}
func (c *CatalogClient) GetAgreementContext(ctx context.Context, agreementID string) (schedule.AgreementContext, error) {
	var dto agreementDTO
	if err := c.getJSON(ctx, "/agreements/"+escape(agreementID), &dto); err != nil {
		return schedule.AgreementContext{}, fmt.Errorf("get agreement %s: %w", agreementID, err)
	}
	if dto.Product == "" {
		return schedule.AgreementContext{}, fmt.Errorf("agreement %s has no product", agreementID)
	}
	if dto.AgreementID == "" {
		dto.AgreementID = agreementID
	}
	return schedule.AgreementContext{
		AgreementID:  dto.AgreementID,
		Product:      dto.Product,
		MaxFinancing: dto.MaxFinancing,
	}, nil
}

// GetProductMeta calls GET /products/{name}
func (c *CatalogClient) GetProductMeta(ctx context.Context, product string) (ProductMeta, error) {
	var dto productDTO
	if err := c.getJSON(ctx, "/products/"+escape(product), &dto); err != nil {
		return ProductMeta{}, fmt.Errorf("get product %s: %w", product, err)
	}
	if dto.Name == "" {
		dto.Name = product
	}
	return ProductMeta{
		Name:         dto.Name,
		Price:        units(dto.Price),
		MaxFinancing: dto.MaxFinancing,
	}, nil
}
