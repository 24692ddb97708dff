package errs

import (
	"errors"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrValidation       = errors.New("validation failed")
	ErrBookUnavailable  = errors.New("no copies available to borrow")
	ErrQuantityExceeded = errors.New("cannot return more copies than total quantity")
	ErrNoActiveLoan     = errors.New("no active lending record found for this book and user")
	ErrNotLendable      = errors.New("this book can only be viewed in the library and cannot be borrowed")
	ErrNotPermitted     = errors.New("not permitted")
	ErrAlreadyQueued    = errors.New("book is already in the restoration queue")
)
