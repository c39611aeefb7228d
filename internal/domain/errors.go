package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateEmail — клиент с таким email уже существует.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrInvalidPhoneFormat — телефон не соответствует +1XXXXXXXXXX или XXX-XXX-XXXX.
	ErrInvalidPhoneFormat = errors.New("invalid phone format, use +1XXXXXXXXXX or XXX-XXX-XXXX")
	// ErrInvalidPrice — цена должна быть положительной.
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrInvalidStock — остаток не может быть отрицательным.
	ErrInvalidStock = errors.New("stock cannot be negative")
	// ErrCustomerNotFound — клиент не найден.
	ErrCustomerNotFound = errors.New("invalid customer ID")
	// ErrEmptyProductList — заказ без товаров.
	ErrEmptyProductList = errors.New("at least one product must be selected")
	// ErrInvalidProductID — один или несколько товаров заказа не найдены.
	ErrInvalidProductID = errors.New("one or more product IDs are invalid")
	// ErrProductNotFound возвращается при чтении несуществующего товара.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidInput — нарушены ограничения модели (обязательные поля, длины, точность).
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidOrderBy — сортировка по неизвестному полю.
	ErrInvalidOrderBy = errors.New("invalid order_by field")
	// ErrStorageFailure — сбой хранилища; транзакция откатывается целиком.
	ErrStorageFailure = errors.New("storage failure")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// StorageError оборачивает ошибку хранилища с указанием операции.
type StorageError struct {
	Op  string
	Err error
}

// Error реализует интерфейс error.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap позволяет матчить как ErrStorageFailure, так и исходную причину.
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageFailure, e.Err}
}

// NewStorageError создаёт StorageError. Для nil-ошибки возвращает nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// RecordError описывает ошибку одной записи в пакетной операции.
type RecordError struct {
	// Index считается с единицы.
	Index int
	Err   error
}

// Error реализует интерфейс error.
func (e RecordError) Error() string {
	return fmt.Sprintf("Record %d: %s", e.Index, e.Err.Error())
}

// Unwrap возвращает причину.
func (e RecordError) Unwrap() error {
	return e.Err
}

var validationErrors = []error{
	ErrDuplicateEmail,
	ErrInvalidPhoneFormat,
	ErrInvalidPrice,
	ErrInvalidStock,
	ErrCustomerNotFound,
	ErrEmptyProductList,
	ErrInvalidProductID,
	ErrInvalidInput,
	ErrInvalidOrderBy,
}

// IsValidation сообщает, вызвана ли ошибка входными данными, а не инфраструктурой.
func IsValidation(err error) bool {
	if err == nil || IsStorageFailure(err) {
		return false
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound проверяет ошибки чтения отсутствующих сущностей.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrOrderNotFound)
}

// IsStorageFailure проверяет, является ли ошибка сбоем хранилища.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}
