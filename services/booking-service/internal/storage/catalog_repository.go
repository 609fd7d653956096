package storage

import (
	"context"

	"github.com/salonpulse/salonpulse/libs/db"
	"github.com/salonpulse/salonpulse/services/booking-service/internal/model"
)

// CatalogRepository reads the per-company service catalog (haircut, beard
// trim, ...) that bookings reference for duration and price.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) GetService(ctx context.Context, companyID, serviceID string) (model.Service, error) {
	var svc model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, company_id::text, name, duration_minutes, price
		FROM services
		WHERE id = $1 AND company_id = $2
	`, serviceID, companyID).Scan(&svc.ID, &svc.CompanyID, &svc.Name, &svc.DurationMinutes, &svc.Price)
	if err != nil {
		return model.Service{}, err
	}
	return svc, nil
}
