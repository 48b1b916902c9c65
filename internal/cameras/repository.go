package cameras

// Repository defines camera persistence.
type Repository interface {
	// Load reads stored cameras; a missing backing file is an empty repository.
	Load() error

	// Get returns the camera with id, or ErrNotFound.
	Get(id string) (Camera, error)

	// List returns all cameras in unspecified order.
	List() ([]Camera, error)

	// Create stores a new camera, or returns ErrExists.
	Create(camera Camera) error

	// Update applies patch to the camera with id and returns the result.
	Update(id string, patch Patch) (Camera, error)

	// Delete removes the camera with id, or returns ErrNotFound.
	Delete(id string) error
}
