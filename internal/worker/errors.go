package worker

import "errors"

// ErrProtocol — сообщение жизненного цикла не удалось отправить.
var ErrProtocol = errors.New("mailbox protocol violation")
