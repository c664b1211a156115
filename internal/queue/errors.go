package queue

import "errors"

var (
	// ErrObjectBusy у объекта уже есть ожидающее обновление
	ErrObjectBusy = errors.New("object has a pending update")
	// ErrNotPending обновление уже покинуло состояние pending
	ErrNotPending = errors.New("update is not pending")
	// ErrNotFound обновление не найдено
	ErrNotFound = errors.New("update not found")
	// ErrInvalidRequest некорректный запрос на постановку в очередь
	ErrInvalidRequest = errors.New("invalid enqueue request")
	// ErrInvalidStatus статус не подходит для операции
	ErrInvalidStatus = errors.New("invalid status for operation")
)
