package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxNameLength  = 100
	MaxBrandLength = 50
)

// CreateRequest is the body of POST /api/v1/devices.
type CreateRequest struct {
	Name  string `json:"name"`
	Brand string `json:"brand"`
	State *State `json:"state,omitempty"`
}

// UpdateRequest is the body of PUT /api/v1/devices/{id}. Every field but
// Version is required.
type UpdateRequest struct {
	Name    string `json:"name"`
	Brand   string `json:"brand"`
	State   *State `json:"state"`
	Version *int64 `json:"version,omitempty"`
}

// PatchRequest is the body of PATCH /api/v1/devices/{id}. A nil field was not
// supplied and is left untouched.
type PatchRequest struct {
	Name    *string `json:"name,omitempty"`
	Brand   *string `json:"brand,omitempty"`
	State   *State  `json:"state,omitempty"`
	Version *int64  `json:"version,omitempty"`
}

// HasName reports whether the patch supplies a name.
func (p PatchRequest) HasName() bool { return p.Name != nil }

// HasBrand reports whether the patch supplies a brand.
func (p PatchRequest) HasBrand() bool { return p.Brand != nil }

// HasState reports whether the patch supplies a state.
func (p PatchRequest) HasState() bool { return p.State != nil }

// Response is the wire representation of a device.
type Response struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Brand        string    `json:"brand"`
	State        State     `json:"state"`
	CreationTime time.Time `json:"creationTime"`
	Version      int64     `json:"version"`
}

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Message     string            `json:"message"`
	Code        string            `json:"code"`
	Timestamp   string            `json:"timestamp"`
	Path        string            `json:"path"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// TimestampFormat is the layout of ErrorResponse.Timestamp.
const TimestampFormat = "2006-01-02T15:04:05Z"

// ValidationError carries per-field messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "Validation failed"
}

type fieldErrors map[string]string

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

func (f fieldErrors) checkName(name string) {
	switch {
	case strings.TrimSpace(name) == "":
		f["name"] = "Device name is required"
	case utf8.RuneCountInString(name) > MaxNameLength:
		f["name"] = "Device name must be between 1 and 100 characters"
	}
}

func (f fieldErrors) checkBrand(brand string) {
	switch {
	case strings.TrimSpace(brand) == "":
		f["brand"] = "Device brand is required"
	case utf8.RuneCountInString(brand) > MaxBrandLength:
		f["brand"] = "Device brand must be between 1 and 50 characters"
	}
}

// Validate checks the request shape before it reaches the service.
func (r CreateRequest) Validate() error {
	f := fieldErrors{}
	f.checkName(r.Name)
	f.checkBrand(r.Brand)
	return f.err()
}

// Validate checks the request shape before it reaches the service.
func (r UpdateRequest) Validate() error {
	f := fieldErrors{}
	f.checkName(r.Name)
	f.checkBrand(r.Brand)
	if r.State == nil {
		f["state"] = "Device state is required"
	}
	return f.err()
}

// Validate checks only the fields present in the patch. A present but empty
// name or brand fails the length rule.
func (r PatchRequest) Validate() error {
	f := fieldErrors{}
	if r.Name != nil {
		if n := utf8.RuneCountInString(*r.Name); n < 1 || n > MaxNameLength {
			f["name"] = "Device name must be between 1 and 100 characters"
		}
	}
	if r.Brand != nil {
		if n := utf8.RuneCountInString(*r.Brand); n < 1 || n > MaxBrandLength {
			f["brand"] = "Device brand must be between 1 and 50 characters"
		}
	}
	return f.err()
}
