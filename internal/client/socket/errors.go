package socket

import "errors"

var (
	// ErrNotConnected поток событий не подключен
	ErrNotConnected = errors.New("event stream not connected")
	// ErrClosed клиент закрыт
	ErrClosed = errors.New("event stream closed")
	// ErrReconnectExhausted попытки переподключения исчерпаны
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)
