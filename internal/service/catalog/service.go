package catalog

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Service обслуживает каталог: категории, товары, варианты, остатки и рейтинг.
type Service struct {
	repo   domain.CatalogRepository
	logger *log.Entry
}

// NewService конструирует сервис каталога.
func NewService(repo domain.CatalogRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-service")
	}
	return &Service{repo: repo, logger: logger}
}

// CreateCategory добавляет категорию с уникальным именем.
func (s *Service) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name", domain.ErrProductNameRequired)
	}
	return s.repo.CreateCategory(ctx, name)
}

// CreateProduct проверяет инварианты товара и сохраняет его вместе с вариантами.
func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": created.ID,
		"variants":   len(created.Instances),
	}).Info("product created")
	return created, nil
}

// CreateInstance добавляет вариант к существующему товару.
func (s *Service) CreateInstance(ctx context.Context, instance domain.ProductInstance) (domain.ProductInstance, error) {
	if errs := instance.Validate(); len(errs) > 0 {
		return domain.ProductInstance{}, errors.Join(errs...)
	}
	return s.repo.CreateInstance(ctx, instance)
}

// Get возвращает товар с вариантами.
func (s *Service) Get(ctx context.Context, productID int64) (domain.Product, error) {
	return s.repo.GetProduct(ctx, productID)
}

// List возвращает товары по фильтру каталога.
func (s *Service) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

// Restock увеличивает остаток варианта на qty.
func (s *Service) Restock(ctx context.Context, instanceID int64, qty int32) (domain.ProductInstance, error) {
	if qty <= 0 {
		return domain.ProductInstance{}, fmt.Errorf("%w: restock quantity must be positive", domain.ErrLineQtyInvalid)
	}

	instance, err := s.repo.AddStock(ctx, instanceID, qty)
	if err != nil {
		return domain.ProductInstance{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_instance_id": instance.ID,
		"added":               qty,
		"stock":               instance.StockQuantity,
	}).Info("stock replenished")
	return instance, nil
}

// Rate добавляет оценку 1..5 и пересчитывает средний рейтинг товара.
func (s *Service) Rate(ctx context.Context, productID int64, value int) (domain.Product, error) {
	if value < 1 || value > 5 {
		return domain.Product{}, domain.ErrRatingValueInvalid
	}
	return s.repo.AddRating(ctx, productID, value)
}
