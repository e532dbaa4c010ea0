package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so wrapped copies
// created with NewDomainError still satisfy errors.Is against the sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound             = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists        = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput         = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState         = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrUnauthenticated      = NewDomainError("UNAUTHENTICATED", "No hay sesión activa. Por favor inicia sesión.")
	ErrInvalidCredentials   = NewDomainError("INVALID_CREDENTIALS", "Usuario o contraseña incorrectos")
	ErrEmptyCart            = NewDomainError("EMPTY_CART", "El carrito está vacío")
	ErrInvalidQuantity      = NewDomainError("INVALID_QUANTITY", "La cantidad debe ser mayor a cero")
	ErrBelowMinimumQuantity = NewDomainError("BELOW_MINIMUM_QUANTITY", "La cantidad es menor al mínimo permitido")
)
