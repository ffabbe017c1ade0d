package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
)

// shutdownTimeout ограничивает время мягкой остановки HTTP-сервера.
const shutdownTimeout = 10 * time.Second

// Server — HTTP-граница магазина поверх echo.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *log.Entry
}

// NewServer собирает echo-сервер с маршрутами заказов и каталога.
// Репозиторий идемпотентности подключает повторное использование ответов
// для запросов с Idempotency-Key; nil отключает механизм.
func NewServer(
	addr string,
	orders *order.Service,
	products *catalog.Service,
	idempotency domain.IdempotencyRepository,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "http_server")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.Use(middleware.Recover())

	orderHandler := NewOrderHandler(orders, logger)
	catalogHandler := NewCatalogHandler(products, logger)

	api := e.Group("/api")

	orderGroup := api.Group("/orders")
	if idempotency != nil {
		orderGroup.Use(IdempotencyMiddleware(idempotency, logger))
	}
	orderGroup.POST("", orderHandler.Create)
	orderGroup.GET("", orderHandler.List)
	orderGroup.GET("/:id", orderHandler.Get)
	orderGroup.PUT("/:id", orderHandler.Update)
	orderGroup.GET("/:id/timeline", orderHandler.Timeline)

	api.POST("/categories", catalogHandler.CreateCategory)
	api.POST("/products", catalogHandler.CreateProduct)
	api.GET("/products", catalogHandler.ListProducts)
	api.GET("/products/:id", catalogHandler.GetProduct)
	api.POST("/products/:id/instances", catalogHandler.CreateInstance)
	api.POST("/products/:id/feedback", catalogHandler.Rate)
	api.POST("/instances/:id/stock", catalogHandler.Restock)

	return &Server{echo: e, addr: addr, logger: logger}
}

// Echo возвращает внутренний echo-инстанс; используется в тестах.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start запускает сервер и блокируется до его остановки.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.addr).Info("HTTP-сервер запускается")
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown мягко останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.logger.Info("HTTP-сервер останавливается")
	return s.echo.Shutdown(shutdownCtx)
}
