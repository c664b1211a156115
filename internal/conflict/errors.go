package conflict

import "errors"

// ErrMergeFailed объекты нельзя слить (разный тип или холст)
var ErrMergeFailed = errors.New("objects cannot be merged")
