// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package utils

import "time"

// StringPtr converts a string to a pointer to a string.
func StringPtr(s string) *string {
	return &s
}

// StringValue safely dereferences a string pointer, returning empty string if nil.
func StringValue(s *string) string {
	if s != nil {
		return *s
	}
	return ""
}

// TimePtr converts a time.Time to a pointer to a time.Time.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// TimeValue safely dereferences a time.Time pointer, returning zero time if nil.
func TimeValue(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Time{}
}
