package models

import "fmt"

//region ValidationError

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

//endregion

//region ExhaustionError

type ExhaustionError struct {
	Msg string
}

func (e *ExhaustionError) Error() string {
	return e.Msg
}

func (e *ExhaustionError) Is(target error) bool {
	_, ok := target.(*ExhaustionError)
	return ok
}

//endregion

//region NotFoundError

type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string {
	return e.Msg
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

//endregion

//region AlreadyOwnedError

type AlreadyOwnedError struct {
	Msg string
}

func (e *AlreadyOwnedError) Error() string {
	return e.Msg
}

func (e *AlreadyOwnedError) Is(target error) bool {
	_, ok := target.(*AlreadyOwnedError)
	return ok
}

//endregion

//region ConflictError

type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string {
	return e.Msg
}

func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)
	return ok
}

//endregion

//region UnauthorizedError

type UnauthorizedError struct {
	Msg string
}

func (e *UnauthorizedError) Error() string {
	return e.Msg
}

func (e *UnauthorizedError) Is(target error) bool {
	_, ok := target.(*UnauthorizedError)
	return ok
}

//endregion

//region StorageError

// StorageError hides the underlying database failure from callers while
// keeping it reachable through errors.Unwrap.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage failure", e.Op)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	_, ok := target.(*StorageError)
	return ok
}

//endregion
