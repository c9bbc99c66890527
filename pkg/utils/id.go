package utils

import "github.com/google/uuid"

func NewID() string { return uuid.NewString() }

func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
