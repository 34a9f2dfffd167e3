// Package utils provides small shared helpers for the application.
package utils

// ToPtr returns a pointer to the given value. Used for the nullable
// boolean columns and optional foreign keys on the gorm models.
func ToPtr[T any](v T) *T {
	return &v
}
