package validator

// Validator validates request and domain structs.
type Validator interface {
	// Validate returns nil when data is valid, or an error describing every violation.
	Validate(data any) error
}
