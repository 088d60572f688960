// Package mapper translates between stored devices and the request and
// response shapes of the API. Every function is free of side effects apart
// from mutating the device it is given.
package mapper

import "github.com/tphummel/devices/internal/models"

// ToResponse copies every field of d into a Response.
func ToResponse(d *models.Device) models.Response {
	return models.Response{
		ID:           d.ID,
		Name:         d.Name,
		Brand:        d.Brand,
		State:        d.State,
		CreationTime: d.CreationTime,
		Version:      d.Version,
	}
}

// ToResponses maps a list of devices. The result is never nil so it encodes
// as an empty JSON array.
func ToResponses(devices []*models.Device) []models.Response {
	out := make([]models.Response, 0, len(devices))
	for _, d := range devices {
		out = append(out, ToResponse(d))
	}
	return out
}

// ToEntity builds a new, unsaved device. A missing state defaults to
// available.
func ToEntity(req models.CreateRequest) *models.Device {
	state := models.StateAvailable
	if req.State != nil {
		state = *req.State
	}
	return &models.Device{
		Name:  req.Name,
		Brand: req.Brand,
		State: state,
	}
}

// ApplyUpdate replaces every mutable field of d. The version is only taken
// from the request when supplied.
func ApplyUpdate(d *models.Device, req models.UpdateRequest) {
	d.Name = req.Name
	d.Brand = req.Brand
	if req.State != nil {
		d.State = *req.State
	}
	if req.Version != nil {
		d.Version = *req.Version
	}
}

// ApplyPatch sets only the fields present in req.
func ApplyPatch(d *models.Device, req models.PatchRequest) {
	if req.Name != nil {
		d.Name = *req.Name
	}
	if req.Brand != nil {
		d.Brand = *req.Brand
	}
	if req.State != nil {
		d.State = *req.State
	}
	if req.Version != nil {
		d.Version = *req.Version
	}
}
