package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	MaxNameLength        = 64
	MaxDescriptionLength = 255
)

type (
	// Category groups projects for reporting. Membership is many-to-many
	// and independent of either side's lifecycle.
	Category struct {
		ID          int64
		Name        string
		Description string
	}

	Project struct {
		ID          int64
		Name        string
		Description string
	}

	// Record is a single span of tracked time against a project. A nil
	// stop epoch means the record is still running.
	Record struct {
		ID             int64
		Project        string
		StartTimeEpoch int64
		StopTimeEpoch  *int64
	}
)

var (
	ErrEmptyName          = errors.New("empty name")
	ErrNameTooLong        = errors.New("name too long")
	ErrInvalidName        = errors.New("name must be a lowercase hyphen-separated slug")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrEmptyProject       = errors.New("empty project")
	ErrNegativeStart      = errors.New("start time cannot be negative")
	ErrStopBeforeStart    = errors.New("stop time cannot be before start time")

	ErrNotFound         = errors.New("not found")
	ErrOpenRecordExists = errors.New("an open record already exists")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateName checks the slug rules shared by categories and projects.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if !slugPattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}

func (c Category) Validate() error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if len(c.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (p Project) Validate() error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	if len(p.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.Project) == "" {
		return ErrEmptyProject
	}
	if r.StartTimeEpoch < 0 {
		return ErrNegativeStart
	}
	if r.StopTimeEpoch != nil && *r.StopTimeEpoch < r.StartTimeEpoch {
		return ErrStopBeforeStart
	}
	return nil
}

// Open reports whether the record is still running.
func (r Record) Open() bool {
	return r.StopTimeEpoch == nil
}

// Elapsed returns the record's duration in seconds. Open records count
// time up to now; the value is derived, never stored.
func (r Record) Elapsed(now time.Time) int64 {
	if r.StopTimeEpoch == nil {
		return now.Unix() - r.StartTimeEpoch
	}
	return *r.StopTimeEpoch - r.StartTimeEpoch
}

func (r Record) StartTime() time.Time {
	return time.Unix(r.StartTimeEpoch, 0)
}

// StopTime returns the stop instant, or the zero time for an open record.
func (r Record) StopTime() time.Time {
	if r.StopTimeEpoch == nil {
		return time.Time{}
	}
	return time.Unix(*r.StopTimeEpoch, 0)
}
