package domain

import "math"

// Float returns a pointer to v, or nil when v is NaN or infinite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// FloatValue dereferences p; ok is false for nil.
func FloatValue(p *float64) (v float64, ok bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// CopyFloat returns an independent copy of p.
func CopyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CopyInt returns an independent copy of p.
func CopyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// EqualFloat reports whether two nullable floats hold the same value.
func EqualFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
