package validate

// FieldError field error to be nested by other errors
type FieldError struct {
	Domain string `json:"domain"`
	Reason string `json:"reason"`
}

// NewFieldError create new field error
func NewFieldError(domain string, reason string) *FieldError {
	return &FieldError{domain, reason}
}

// Identifier a named reference passed next to a request body, such as a path parameter
type Identifier struct {
	Name  string
	Value string
}

// ID shorthand for Identifier{name, value}
func ID(name, value string) Identifier {
	return Identifier{name, value}
}

// Validator .
type Validator interface {
	Struct(s interface{}) []*FieldError
	// Identifiers every identifier must be non blank, one error per missing one in argument order
	Identifiers(ids ...Identifier) []*FieldError
}
