package utils

import (
	"errors"
	"strconv"
)

var ErrInvalidID = errors.New("invalid id")

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// ParseID parses a positive numeric path parameter.
func ParseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return uint(id), nil
}

// ParsePage returns the 1-based page number, defaulting to 1.
func ParsePage(s string) int {
	if page := StringToInt(s); page > 0 {
		return page
	}
	return 1
}
