package models

// String methods for custom string types, required for toon serialization,
// which uses fmt.Stringer.

// CloneType
func (c CloneType) String() string { return string(c) }
