// Package xerr defines the storage backend contract's error taxonomy: a
// small, closed set of error categories a StorageBackend may return,
// distinct from the protocol-level response status codes the command
// handler emits on the wire.
//
// Grounded on this codebase's pkg/store/metadata error factory pattern
// (StoreError / ErrorCode / New*Error constructors), re-targeted at the
// backend outcomes a sync datastore needs.
package xerr

// Code is the backend-facing error category.
type Code int

const (
	OK Code = iota
	NotFound
	Duplicate
	ErrorGeneral
	ObjectTooBig
	StorageFull
	InvalidFormat
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case NotFound:
		return "NOT_FOUND"
	case Duplicate:
		return "DUPLICATE"
	case ErrorGeneral:
		return "ERROR"
	case ObjectTooBig:
		return "OBJECT_TOO_BIG"
	case StorageFull:
		return "STORAGE_FULL"
	case InvalidFormat:
		return "INVALID_FORMAT"
	default:
		return "UNKNOWN"
	}
}

// BackendError is the error value returned alongside a Code from a
// StorageBackend operation (addItems/replaceItems/deleteItems/...).
type BackendError struct {
	Code Code
	Message string
	Key string
}

func (e *BackendError) Error() string {
	if e.Key != "" {
		return e.Message + ": " + e.Key
	}
	return e.Message
}

// New wraps a Code and message into a *BackendError.
func New(code Code, message string) *BackendError {
	return &BackendError{Code: code, Message: message}
}

// NewForKey wraps a Code, message and the offending item key.
func NewForKey(code Code, message, key string) *BackendError {
	return &BackendError{Code: code, Message: message, Key: key}
}

// NewNotFound reports that a requested item does not exist in the backend.
func NewNotFound(key string) *BackendError {
	return NewForKey(NotFound, "item not found", key)
}

// NewDuplicate reports that an Add collided with an existing item.
func NewDuplicate(key string) *BackendError {
	return NewForKey(Duplicate, "duplicate item", key)
}

// NewObjectTooBig reports that an item exceeds the backend's maxObjSize.
func NewObjectTooBig(key string) *BackendError {
	return NewForKey(ObjectTooBig, "object exceeds backend size limit", key)
}

// NewStorageFull reports that the backend has no space left to commit.
func NewStorageFull() *BackendError {
	return New(StorageFull, "storage full")
}

// NewInvalidFormat reports that the backend cannot accept the item's
// declared type/format/version.
func NewInvalidFormat(key string) *BackendError {
	return NewForKey(InvalidFormat, "unsupported item format", key)
}
