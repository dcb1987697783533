package model

// Merge returns override when it is set (non-zero) and base otherwise.
func Merge[T comparable](base, override T) T {
	var zero T
	if override != zero {
		return override
	}
	return base
}

// MergePtr returns a copy of the value behind override when it is non-nil and
// a copy of base otherwise. The result never aliases either argument.
func MergePtr[T any](base, override *T) *T {
	src := base
	if override != nil {
		src = override
	}
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

// MergeSlice returns a copy of override when it is non-nil and a copy of base
// otherwise. An empty non-nil override clears the base value.
func MergeSlice[T any](base, override []T) []T {
	src := base
	if override != nil {
		src = override
	}
	if src == nil {
		return nil
	}
	return append(make([]T, 0, len(src)), src...)
}

// Ptr returns a pointer to v. It is a convenience for setting optional fields.
func Ptr[T any](v T) *T {
	return &v
}
