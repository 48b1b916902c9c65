// Package cameras manages camera records and their persistence.
package cameras

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/ffmpeg"
)

// Status is the coarse state of a camera shown in listings.
type Status string

// Camera statuses.
const (
	StatusOnline    Status = "online"
	StatusOffline   Status = "offline"
	StatusStreaming Status = "streaming"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusStreaming:
		return true
	}
	return false
}

// Camera is a stored camera record.
type Camera struct {
	ID        string    `toml:"id" json:"id"`
	Name      string    `toml:"name" json:"name"`
	RTSPURL   string    `toml:"rtsp_url,omitempty" json:"rtsp_url,omitempty"`
	Status    Status    `toml:"status" json:"status"`
	CreatedAt time.Time `toml:"created_at" json:"created_at"`
	UpdatedAt time.Time `toml:"updated_at" json:"updated_at"`
}

// Info returns the event payload for the camera with credentials redacted.
func (c Camera) Info() events.CameraInfo {
	return events.CameraInfo{
		ID:      c.ID,
		Name:    c.Name,
		RTSPURL: ffmpeg.RedactURL(c.RTSPURL),
		Status:  string(c.Status),
	}
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name    *string
	RTSPURL *string
	Status  *Status
}

// Apply returns c with the non-nil fields of p applied.
func (p Patch) Apply(c Camera) Camera {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.RTSPURL != nil {
		c.RTSPURL = *p.RTSPURL
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	return c
}

// ValidationError is the field error returned for invalid camera input.
type ValidationError = ffmpeg.ValidationError

var (
	// ErrNotFound is returned when no camera has the requested id.
	ErrNotFound = errors.New("camera not found")
	// ErrExists is returned when creating a camera whose id is taken.
	ErrExists = errors.New("camera already exists")
	// ErrNoSource is returned when a camera has no RTSP URL to stream from.
	ErrNoSource = errors.New("camera has no rtsp url")
)

const maxNameLength = 100

// Validate checks a camera record before it is stored.
func Validate(c Camera, schemes []string) error {
	if err := ffmpeg.ValidateCameraID(c.ID); err != nil {
		return err
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if len(name) > maxNameLength {
		return &ValidationError{Field: "name", Value: name[:20] + "...", Reason: "is too long"}
	}
	if c.RTSPURL != "" {
		if err := ffmpeg.ValidateSourceURL(c.RTSPURL, schemes); err != nil {
			return err
		}
	}
	if !c.Status.Valid() {
		return &ValidationError{Field: "status", Value: string(c.Status), Reason: "must be online, offline or streaming"}
	}
	return nil
}

// ListOptions filters, orders and pages a camera listing.
type ListOptions struct {
	Status    Status // empty matches all
	SortBy    string // created_at (default), updated_at, name, id
	Ascending bool
	Page      int // 1-based, 0 means no paging
	Limit     int
}

// Filter applies opts to cameras and returns the page plus the total number
// of matches before paging.
func Filter(cameras []Camera, opts ListOptions) ([]Camera, int) {
	out := make([]Camera, 0, len(cameras))
	for _, c := range cameras {
		if opts.Status == "" || c.Status == opts.Status {
			out = append(out, c)
		}
	}

	slices.SortStableFunc(out, func(a, b Camera) int {
		var cmp int
		switch opts.SortBy {
		case "name":
			cmp = strings.Compare(a.Name, b.Name)
		case "id":
			cmp = strings.Compare(a.ID, b.ID)
		case "updated_at":
			cmp = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
		if cmp == 0 {
			cmp = strings.Compare(a.ID, b.ID)
		}
		if !opts.Ascending {
			cmp = -cmp
		}
		return cmp
	})

	total := len(out)
	if opts.Page < 1 || opts.Limit < 1 {
		return out, total
	}
	start := (opts.Page - 1) * opts.Limit
	if start >= total {
		return []Camera{}, total
	}
	end := min(start+opts.Limit, total)
	return out[start:end], total
}
