package utils

// StrPtr returns a pointer to the given string value.
func StrPtr(v string) *string { return &v }

// F64Ptr returns a pointer to the given float64 value.
func F64Ptr(v float64) *float64 { return &v }
