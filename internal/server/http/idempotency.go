package http

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// idempotencyKeyHeader — заголовок, включающий защиту от повторной обработки.
const idempotencyKeyHeader = "Idempotency-Key"

// replayedHeader помечает ответ, собранный из сохранённой записи.
const replayedHeader = "Idempotency-Replayed"

// defaultIdempotencyTTL — срок хранения записи; повтор после истечения
// обрабатывается как новый запрос.
const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyMiddleware перехватывает мутирующие запросы с Idempotency-Key:
// первый запрос захватывает ключ и сохраняет свой ответ, повтор с тем же
// телом получает сохранённый ответ без повторного исполнения. Ответ
// сохраняется и для упавшего обработчика, чтобы повтор не застревал в
// фазе processing до истечения TTL.
func IdempotencyMiddleware(repo domain.IdempotencyRepository, logger *log.Entry) echo.MiddlewareFunc {
	if logger == nil {
		logger = log.WithField("component", "idempotency")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(idempotencyKeyHeader)
			if key == "" || !mutating(c.Request().Method) {
				return next(c)
			}

			hash, err := requestHash(c)
			if err != nil {
				return writeError(c, err)
			}

			ctx := c.Request().Context()
			_, err = repo.CreateProcessing(ctx, key, hash, time.Now().UTC().Add(defaultIdempotencyTTL))
			switch {
			case err == nil:
				// Ключ захвачен, запрос исполняется впервые.
			case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
				return replay(c, repo, key, hash)
			default:
				return writeError(c, err)
			}

			capture := newResponseCapture(c.Response())
			c.Response().Writer = capture

			handlerErr := next(c)
			if handlerErr != nil {
				// Обработчик упал до записи ответа: фиксируем отказ, иначе
				// повтор будет получать конфликт до истечения TTL.
				body, status := failureResponse(handlerErr)
				if err := repo.MarkFailed(ctx, key, body, status); err != nil {
					logger.WithError(err).WithField("key", key).Error("не удалось зафиксировать отказ по ключу")
				}
				return handlerErr
			}

			if err := repo.MarkDone(ctx, key, capture.body.Bytes(), capture.status); err != nil {
				logger.WithError(err).WithField("key", key).Error("не удалось сохранить ответ по ключу")
			}
			return nil
		}
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// requestHash привязывает ключ к методу, пути и телу запроса.
// Тело восстанавливается, чтобы обработчик прочитал его заново.
func requestHash(c echo.Context) (string, error) {
	req := c.Request()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return "", err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.New()
	sum.Write([]byte(req.Method))
	sum.Write([]byte{'\n'})
	sum.Write([]byte(req.URL.Path))
	sum.Write([]byte{'\n'})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// replay отдаёт сохранённый ответ повторному запросу.
func replay(c echo.Context, repo domain.IdempotencyRepository, key, hash string) error {
	record, err := repo.Get(c.Request().Context(), key)
	if err != nil {
		return writeError(c, err)
	}
	if !record.MatchesRequest(hash) {
		return writeError(c, domain.ErrIdempotencyHashMismatch)
	}
	if !record.Replayable() {
		return c.JSON(http.StatusConflict, errorBody{Error: errorInfo{
			Kind:    "conflict",
			Message: "запрос с этим ключом ещё обрабатывается",
		}})
	}

	c.Response().Header().Set(replayedHeader, "true")
	return c.JSONBlob(record.HTTPStatus, record.ResponseBody)
}

// failureResponse строит тело, которое получит повтор упавшего запроса.
func failureResponse(err error) ([]byte, int) {
	kind, status := classifyError(err)
	body, marshalErr := json.Marshal(errorBody{Error: errorInfo{Kind: kind, Message: err.Error()}})
	if marshalErr != nil {
		return []byte(`{"error":{"kind":"internal","message":"internal error"}}`), http.StatusInternalServerError
	}
	return body, status
}

// responseCapture дублирует записываемый ответ в буфер.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func newResponseCapture(resp *echo.Response) *responseCapture {
	return &responseCapture{ResponseWriter: resp.Writer, status: http.StatusOK}
}

func (w *responseCapture) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseCapture) Write(p []byte) (int, error) {
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}
