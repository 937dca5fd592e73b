package config

import "errors"

// ErrInvalidConfig — переменная окружения содержит некорректное значение.
var ErrInvalidConfig = errors.New("invalid config")
