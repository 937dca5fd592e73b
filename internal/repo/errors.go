package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrUnknownTable — таблица документов не входит в допустимый набор.
	ErrUnknownTable = errors.New("unknown document table")

	// ErrMissingKey — у документа нет поля естественного ключа.
	ErrMissingKey = errors.New("document has no natural key field")
)
