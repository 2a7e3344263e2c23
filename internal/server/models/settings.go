package models

import "time"

// Settings is one immutable version of the submission configuration. The
// current settings are the row with the latest CreatedAt.
type Settings struct {
	ID                int64     `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	CreatedBy         string    `json:"created_by,omitempty"`
	PlateNRows        int       `json:"plate_n_rows"`
	PlateNCols        int       `json:"plate_n_cols"`
	RunningOptions    []string  `json:"running_options"`
	LastSubmissionDay int       `json:"last_submission_day"`
}

// DefaultSettings is written on first read when no settings exist: an 8x12
// plate, no running-option restriction, submissions close after Friday.
func DefaultSettings() Settings {
	return Settings{
		PlateNRows:        8,
		PlateNCols:        12,
		RunningOptions:    []string{},
		LastSubmissionDay: 4,
	}
}

// Capacity is the number of samples that fit on one weekly plate.
func (s Settings) Capacity() int {
	return s.PlateNRows * s.PlateNCols
}

// AllowsRunningOption reports whether option may be submitted. An empty
// option list places no restriction.
func (s Settings) AllowsRunningOption(option string) bool {
	if len(s.RunningOptions) == 0 {
		return true
	}
	for _, o := range s.RunningOptions {
		if o == option {
			return true
		}
	}
	return false
}
