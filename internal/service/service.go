// Package service holds the device business rules: duplicate prevention on
// create, the in-use guards on update and delete, and translation of store
// version conflicts. It never retries; conflicts are returned to the caller.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tphummel/devices/internal/db"
	"github.com/tphummel/devices/internal/mapper"
	"github.com/tphummel/devices/internal/models"
)

// Repository is the persistence the service needs. db.DB and db.Memory both
// satisfy it.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*models.Device, error)
	FindByBrand(ctx context.Context, brand string) ([]*models.Device, error)
	FindByState(ctx context.Context, state models.State) ([]*models.Device, error)
	ExistsByNameAndBrand(ctx context.Context, name, brand string) (bool, error)
	CountByState(ctx context.Context, state models.State) (int, error)
	ListAllByCreationDesc(ctx context.Context) ([]*models.Device, error)
	// Save inserts a device without an id, or updates one whose version
	// matches the stored version. It returns db.ErrConcurrentModification on
	// a version mismatch.
	Save(ctx context.Context, d *models.Device) (*models.Device, error)
	Delete(ctx context.Context, d *models.Device) error
}

// Service implements the device operations on top of a Repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// New returns a Service backed by repo. A nil logger falls back to
// slog.Default().
func New(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Create stores a new device unless one with the same name and brand exists.
// The request is expected to be validated already.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (models.Response, error) {
	s.logger.InfoContext(ctx, "creating device", "name", req.Name, "brand", req.Brand)

	exists, err := s.repo.ExistsByNameAndBrand(ctx, req.Name, req.Brand)
	if err != nil {
		return models.Response{}, err
	}
	if exists {
		s.logger.WarnContext(ctx, "duplicate device", "name", req.Name, "brand", req.Brand)
		return models.Response{}, &DuplicateError{Name: req.Name, Brand: req.Brand}
	}

	saved, err := s.repo.Save(ctx, mapper.ToEntity(req))
	if err != nil {
		return models.Response{}, fmt.Errorf("create device: %w", err)
	}
	s.logger.InfoContext(ctx, "device created", "id", saved.ID)
	return mapper.ToResponse(saved), nil
}

// Get returns the device with the given id.
func (s *Service) Get(ctx context.Context, id int64) (models.Response, error) {
	d, err := s.find(ctx, id)
	if err != nil {
		return models.Response{}, err
	}
	return mapper.ToResponse(d), nil
}

// List returns every device, newest first.
func (s *Service) List(ctx context.Context) ([]models.Response, error) {
	devices, err := s.repo.ListAllByCreationDesc(ctx)
	if err != nil {
		return nil, err
	}
	return mapper.ToResponses(devices), nil
}

// ListByBrand returns devices of the given brand, ignoring case.
func (s *Service) ListByBrand(ctx context.Context, brand string) ([]models.Response, error) {
	devices, err := s.repo.FindByBrand(ctx, brand)
	if err != nil {
		return nil, err
	}
	return mapper.ToResponses(devices), nil
}

// ListByState returns devices in the given state.
func (s *Service) ListByState(ctx context.Context, state models.State) ([]models.Response, error) {
	devices, err := s.repo.FindByState(ctx, state)
	if err != nil {
		return nil, err
	}
	return mapper.ToResponses(devices), nil
}

// CountByState returns how many devices are in state.
func (s *Service) CountByState(ctx context.Context, state models.State) (int, error) {
	return s.repo.CountByState(ctx, state)
}

// Update replaces name, brand and state of a device. An in-use device keeps
// its name and brand: supplying different values is a rule violation, while
// resending the stored values is allowed.
func (s *Service) Update(ctx context.Context, id int64, req models.UpdateRequest) (models.Response, error) {
	s.logger.InfoContext(ctx, "updating device", "id", id)

	d, err := s.find(ctx, id)
	if err != nil {
		return models.Response{}, err
	}
	if d.InUse() && (d.Name != req.Name || d.Brand != req.Brand) {
		s.logger.WarnContext(ctx, "attempted to update name/brand of in-use device", "id", id)
		return models.Response{}, updateInUse(id)
	}

	mapper.ApplyUpdate(d, req)
	return s.save(ctx, d)
}

// Patch applies only the fields present in req. The in-use guard looks at
// present fields only.
func (s *Service) Patch(ctx context.Context, id int64, req models.PatchRequest) (models.Response, error) {
	s.logger.InfoContext(ctx, "patching device", "id", id)

	d, err := s.find(ctx, id)
	if err != nil {
		return models.Response{}, err
	}
	if d.InUse() {
		nameChanged := req.HasName() && *req.Name != d.Name
		brandChanged := req.HasBrand() && *req.Brand != d.Brand
		if nameChanged || brandChanged {
			s.logger.WarnContext(ctx, "attempted to update name/brand of in-use device", "id", id)
			return models.Response{}, updateInUse(id)
		}
	}

	mapper.ApplyPatch(d, req)
	return s.save(ctx, d)
}

// Delete removes a device unless it is in use.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.logger.InfoContext(ctx, "deleting device", "id", id)

	d, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if d.InUse() {
		s.logger.WarnContext(ctx, "attempted to delete in-use device", "id", id)
		return deleteInUse(id)
	}

	if err := s.repo.Delete(ctx, d); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return &NotFoundError{ID: id}
		}
		return fmt.Errorf("delete device %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "device deleted", "id", id)
	return nil
}

func (s *Service) find(ctx context.Context, id int64) (*models.Device, error) {
	d, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) save(ctx context.Context, d *models.Device) (models.Response, error) {
	saved, err := s.repo.Save(ctx, d)
	switch {
	case errors.Is(err, db.ErrConcurrentModification):
		s.logger.WarnContext(ctx, "optimistic locking failure", "id", d.ID)
		return models.Response{}, optimisticLock(d.ID)
	case errors.Is(err, db.ErrNotFound):
		return models.Response{}, &NotFoundError{ID: d.ID}
	case err != nil:
		return models.Response{}, fmt.Errorf("save device %d: %w", d.ID, err)
	}
	s.logger.InfoContext(ctx, "device updated", "id", d.ID, "version", saved.Version)
	return mapper.ToResponse(saved), nil
}
