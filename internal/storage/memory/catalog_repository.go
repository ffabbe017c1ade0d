package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// catalogRepositoryInMemory — in-memory реализация каталога поверх общего Store.
type catalogRepositoryInMemory struct {
	store *Store
}

// NewCatalogRepository создаёт in-memory реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepositoryInMemory{store: store}
}

func (r *catalogRepositoryInMemory) CreateCategory(_ context.Context, name string) (domain.Category, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, category := range s.categories {
		if category.Name == name {
			return domain.Category{}, domain.ErrVersionConflict
		}
	}

	s.nextCategoryID++
	category := domain.Category{ID: s.nextCategoryID, Name: name}
	s.categories[category.ID] = category
	return category, nil
}

func (r *catalogRepositoryInMemory) CreateProduct(_ context.Context, product domain.Product) (domain.Product, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[product.CategoryID]; !ok {
		return domain.Product{}, domain.ErrCategoryNotFound
	}

	s.nextProductID++
	product.ID = s.nextProductID

	instances := product.Instances
	product.Instances = nil
	s.products[product.ID] = product

	product.Instances = make([]domain.ProductInstance, 0, len(instances))
	for _, inst := range instances {
		s.nextInstanceID++
		inst.ID = s.nextInstanceID
		inst.ProductID = product.ID
		s.instances[inst.ID] = inst
		product.Instances = append(product.Instances, inst)
	}

	return product, nil
}

func (r *catalogRepositoryInMemory) CreateInstance(_ context.Context, instance domain.ProductInstance) (domain.ProductInstance, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[instance.ProductID]; !ok {
		return domain.ProductInstance{}, domain.ErrProductNotFound
	}

	s.nextInstanceID++
	instance.ID = s.nextInstanceID
	s.instances[instance.ID] = instance
	return instance, nil
}

func (r *catalogRepositoryInMemory) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.productLocked(id)
}

func (r *catalogRepositoryInMemory) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var categoryID int64
	if filter.Category != "" {
		found := false
		for _, category := range s.categories {
			if strings.EqualFold(category.Name, filter.Category) {
				categoryID = category.ID
				found = true
				break
			}
		}
		if !found {
			return []domain.Product{}, nil
		}
	}

	result := make([]domain.Product, 0, len(s.products))
	for id, product := range s.products {
		if categoryID != 0 && product.CategoryID != categoryID {
			continue
		}
		if filter.Name != "" && !strings.Contains(strings.ToLower(product.Name), strings.ToLower(filter.Name)) {
			continue
		}
		full, err := s.productLocked(id)
		if err != nil {
			return nil, err
		}
		result = append(result, full)
	}

	sort.Slice(result, func(i, j int) bool {
		var less bool
		switch {
		case filter.SortByPrice:
			less = minPrice(result[i]) < minPrice(result[j])
		case filter.SortByRating:
			less = result[i].Rating < result[j].Rating
		default:
			return result[i].ID < result[j].ID
		}
		if !filter.SortAsc {
			less = !less
		}
		return less
	})

	return result, nil
}

func (r *catalogRepositoryInMemory) AddStock(_ context.Context, instanceID int64, qty int32) (domain.ProductInstance, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	instance, ok := s.instances[instanceID]
	if !ok {
		return domain.ProductInstance{}, domain.ErrVariantNotFound
	}

	instance.StockQuantity += qty
	s.instances[instanceID] = instance
	return instance, nil
}

func (r *catalogRepositoryInMemory) AddRating(_ context.Context, productID int64, value int) (domain.Product, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}

	product.Rating = domain.NextRating(product.Rating, product.TimesRated, value)
	product.TimesRated++
	s.products[productID] = product

	return s.productLocked(productID)
}

// productLocked собирает товар вместе с вариантами; вызывается под мьютексом.
func (s *Store) productLocked(id int64) (domain.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}

	product = copyProduct(product)
	for _, inst := range s.instances {
		if inst.ProductID == id {
			product.Instances = append(product.Instances, inst)
		}
	}
	sort.Slice(product.Instances, func(i, j int) bool {
		return product.Instances[i].ID < product.Instances[j].ID
	})

	return product, nil
}

func minPrice(product domain.Product) int64 {
	var best int64
	for _, inst := range product.Instances {
		if best == 0 || inst.PriceMinor < best {
			best = inst.PriceMinor
		}
	}
	return best
}

var _ domain.CatalogRepository = (*catalogRepositoryInMemory)(nil)
