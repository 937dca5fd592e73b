// Package subsystem собирает зависимости подсистемы (collector или converter)
// из конфигурации окружения и запускает её однократно или по расписанию.
//
// Используется бинарниками climatica-gatherer и climatica-converter.
package subsystem
