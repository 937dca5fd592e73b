package fetch

import (
	"errors"
	"fmt"
)

// Ошибки HTTP-клиента.
var (
	// ErrRequest — запрос не удалось сформировать.
	ErrRequest = errors.New("fetch request failed")

	// ErrStatus — источник вернул неуспешный HTTP-код.
	ErrStatus = errors.New("unexpected status code")

	// ErrDecode — тело ответа не является ожидаемым JSON.
	ErrDecode = errors.New("unparseable response body")
)

// StatusError — ответ с HTTP-кодом >= 400.
//
// Тело сохраняется, чтобы модуль мог разобрать сообщение источника
// (например, превышение лимита запросов).
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, truncate(string(e.Body), 200))
}

// Unwrap позволяет проверять errors.Is(err, ErrStatus).
func (e *StatusError) Unwrap() error {
	return ErrStatus
}
