package domain

import "time"

// IdempotencyStatus отражает, в какой фазе находится запрос с Idempotency-Key.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — первый запрос с ключом ещё выполняется;
	// повтор в этой фазе отклоняется как конфликт.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — обработка завершилась, ответ сохранён для повтора.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed — обработка завершилась ошибкой; такой ответ
	// так же воспроизводится при повторе.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid сообщает, относится ли статус к известным значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	}
	return false
}

// IdempotencyRecord — состояние запроса, принятого с Idempotency-Key.
// Ключ уникален; RequestHash привязывает его к конкретному телу запроса.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Replayable сообщает, можно ли отдать сохранённый ответ повторному запросу.
func (r IdempotencyRecord) Replayable() bool {
	return r.Status == IdempotencyStatusDone || r.Status == IdempotencyStatusFailed
}

// Expired сообщает, истёк ли срок жизни записи к моменту now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.IsZero() && !now.Before(r.TTLAt)
}

// MatchesRequest проверяет, что повтор пришёл с тем же телом запроса.
func (r IdempotencyRecord) MatchesRequest(requestHash string) bool {
	return r.RequestHash == requestHash
}
