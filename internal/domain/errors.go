package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserIDRequired = errors.New("user_id is required")
	// Ошибка отсутствия хотя бы одной позиции в запросе на заказ.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка при некорректном количестве в позиции (< 1).
	ErrLineQtyInvalid = errors.New("line quantity must be greater than zero")
	// Ошибка отсутствующего имени товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка неположительной цены варианта.
	ErrPriceInvalid = errors.New("price must be greater than zero")
	// Ошибка абсолютной скидки вне диапазона [0, цена].
	ErrAbsoluteDiscountInvalid = errors.New("absolute discount must be between 0 and the price")
	// Ошибка процентной скидки вне диапазона [0, 100].
	ErrPercentageDiscountInvalid = errors.New("percentage discount must be between 0 and 100")
	// Ошибка длины SKU (допустимо от 3 до 50 символов).
	ErrSKULengthInvalid = errors.New("sku must be between 3 and 50 characters")
	// Ошибка недопустимых символов в SKU.
	ErrSKUAlphabetInvalid = errors.New("sku contains characters outside the allowed alphabet")
	// Ошибка отрицательного остатка на складе.
	ErrStockNegative = errors.New("stock quantity must be non-negative")
	// Ошибка некорректной оценки товара (допустимо от 1 до 5).
	ErrRatingValueInvalid = errors.New("rating value must be between 1 and 5")

	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrCategoryNotFound возвращается, если категория не существует.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrVariantNotFound возвращается, если вариант товара не существует.
	ErrVariantNotFound = errors.New("product instance not found")

	// ErrEmptyOrder означает, что после применения политики резервирования
	// не осталось ни одной позиции; заказ не сохраняется.
	ErrEmptyOrder = errors.New("the order contains no products")
	// ErrVersionConflict сигнализирует о конфликте конкурентных записей.
	ErrVersionConflict = errors.New("concurrent update conflict")
	// ErrStoreUnavailable — временная недоступность хранилища; запрос можно повторить.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrIdempotencyKeyRequired возвращается при пустом idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired возвращается при пустом хэше запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists означает, что ключ уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch означает повторное использование ключа с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key is used with a different request")
	// ErrIdempotencyKeyNotFound возвращается, если запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, относится ли ошибка к семейству "не найдено".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrVariantNotFound)
}
