package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
)

// CatalogHandler обслуживает маршруты каталога.
type CatalogHandler struct {
	service *catalog.Service
	logger  *log.Entry
}

// NewCatalogHandler создаёт обработчик каталога.
func NewCatalogHandler(service *catalog.Service, logger *log.Entry) *CatalogHandler {
	if logger == nil {
		logger = log.WithField("component", "http_catalog_handler")
	}
	return &CatalogHandler{service: service, logger: logger}
}

// CreateCategory обрабатывает POST /api/categories.
func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	var req createCategoryRequest
	if err := c.Bind(&req); err != nil {
		return writeInvalid(c, "некорректное тело запроса")
	}
	if err := c.Validate(&req); err != nil {
		return writeInvalid(c, err.Error())
	}

	created, err := h.service.CreateCategory(c.Request().Context(), req.Name)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, categoryPayload{ID: created.ID, Name: created.Name})
}

// CreateProduct обрабатывает POST /api/products.
func (h *CatalogHandler) CreateProduct(c echo.Context) error {
	var req createProductRequest
	if err := c.Bind(&req); err != nil {
		return writeInvalid(c, "некорректное тело запроса")
	}
	if err := c.Validate(&req); err != nil {
		return writeInvalid(c, err.Error())
	}

	product := domain.Product{
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	}
	for _, inst := range req.Instances {
		product.Instances = append(product.Instances, domain.ProductInstance{
			PriceMinor:            inst.PriceMinor,
			AbsoluteDiscountMinor: inst.AbsoluteDiscountMinor,
			PercentageDiscount:    inst.PercentageDiscount,
			SKU:                   inst.SKU,
			Color:                 inst.Color,
			Size:                  inst.Size,
			StockQuantity:         inst.StockQuantity,
		})
	}

	created, err := h.service.CreateProduct(c.Request().Context(), product)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toProductPayload(created))
}

// CreateInstance обрабатывает POST /api/products/:id/instances.
func (h *CatalogHandler) CreateInstance(c echo.Context) error {
	productID, err := parseIDParam(c, "id")
	if err != nil {
		return writeInvalid(c, "некорректный идентификатор товара")
	}

	var req productInstanceInput
	if err := c.Bind(&req); err != nil {
		return writeInvalid(c, "некорректное тело запроса")
	}
	if err := c.Validate(&req); err != nil {
		return writeInvalid(c, err.Error())
	}

	created, err := h.service.CreateInstance(c.Request().Context(), domain.ProductInstance{
		ProductID:             productID,
		PriceMinor:            req.PriceMinor,
		AbsoluteDiscountMinor: req.AbsoluteDiscountMinor,
		PercentageDiscount:    req.PercentageDiscount,
		SKU:                   req.SKU,
		Color:                 req.Color,
		Size:                  req.Size,
		StockQuantity:         req.StockQuantity,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toInstancePayload(created))
}

// GetProduct обрабатывает GET /api/products/:id.
func (h *CatalogHandler) GetProduct(c echo.Context) error {
	productID, err := parseIDParam(c, "id")
	if err != nil {
		return writeInvalid(c, "некорректный идентификатор товара")
	}

	found, err := h.service.Get(c.Request().Context(), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toProductPayload(found))
}

// ListProducts обрабатывает GET /api/products.
func (h *CatalogHandler) ListProducts(c echo.Context) error {
	filter := domain.ProductFilter{
		Category: c.QueryParam("category"),
		Name:     c.QueryParam("name"),
	}
	switch c.QueryParam("sort") {
	case "":
	case "price":
		filter.SortByPrice = true
	case "rating":
		filter.SortByRating = true
	default:
		return writeInvalid(c, "некорректное значение sort")
	}
	switch c.QueryParam("order") {
	case "", "desc":
	case "asc":
		filter.SortAsc = true
	default:
		return writeInvalid(c, "некорректное значение order")
	}

	products, err := h.service.List(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, err)
	}

	payload := make([]productPayload, 0, len(products))
	for _, product := range products {
		payload = append(payload, toProductPayload(product))
	}
	return c.JSON(http.StatusOK, payload)
}

// Restock обрабатывает POST /api/instances/:id/stock.
func (h *CatalogHandler) Restock(c echo.Context) error {
	instanceID, err := parseIDParam(c, "id")
	if err != nil {
		return writeInvalid(c, "некорректный идентификатор варианта")
	}

	var req restockRequest
	if err := c.Bind(&req); err != nil {
		return writeInvalid(c, "некорректное тело запроса")
	}
	if err := c.Validate(&req); err != nil {
		return writeInvalid(c, err.Error())
	}

	updated, err := h.service.Restock(c.Request().Context(), instanceID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toInstancePayload(updated))
}

// Rate обрабатывает POST /api/products/:id/feedback.
func (h *CatalogHandler) Rate(c echo.Context) error {
	productID, err := parseIDParam(c, "id")
	if err != nil {
		return writeInvalid(c, "некорректный идентификатор товара")
	}

	var req rateRequest
	if err := c.Bind(&req); err != nil {
		return writeInvalid(c, "некорректное тело запроса")
	}
	if err := c.Validate(&req); err != nil {
		return writeInvalid(c, err.Error())
	}

	updated, err := h.service.Rate(c.Request().Context(), productID, req.Value)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toProductPayload(updated))
}
