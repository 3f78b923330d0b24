// Package uid generates unique identifiers.
package uid

// StringID produces unique string identifiers.
type StringID interface {
	Generate() string
}

// NumberID produces unique numeric identifiers.
type NumberID interface {
	Generate() int64
}
