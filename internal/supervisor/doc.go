// Package supervisor — единственный получатель сообщений Mailbox.
//
// Supervisor отвечает за:
//   - Учёт модулей по сообщениям Register и Finished
//   - Ремонт модулей, упавших до планирования собственного повтора
//   - Построение отчёта выполнения по сообщению Report
//   - Завершение по сообщению Exit
//
// Привилегированные методы модуля Supervisor вызывает, предъявляя
// токен текущего выполнения (module.Capability).
package supervisor
