package models

import (
	"fmt"
	"time"
)

// Sample is one submitted sequencing sample. PrimaryKey is assigned at
// creation and never changes.
type Sample struct {
	PrimaryKey                   string    `json:"primary_key"`
	Email                        string    `json:"email"`
	Name                         string    `json:"name"`
	RunningOption                string    `json:"running_option"`
	Concentration                int       `json:"concentration"`
	Date                         time.Time `json:"date"`
	ReferenceSequenceDescription *string   `json:"reference_sequence_description"`
	HasResultsFasta              bool      `json:"has_results_fasta"`
	HasResultsGbk                bool      `json:"has_results_gbk"`
	HasResultsZip                bool      `json:"has_results_zip"`
}

// Week is the ISO year and week of the sample's submission date.
func (s *Sample) Week() Week {
	return WeekOf(s.Date)
}

// BaseName is "<primary_key>_<name>", the stem shared by all of the
// sample's stored files.
func (s *Sample) BaseName() string {
	return s.PrimaryKey + "_" + s.Name
}

// Slot is a position on the weekly plate. Row is 0-based and rendered as a
// letter, Col is 0-based and rendered 1-based.
type Slot struct {
	Row int
	Col int
}

func (s Slot) Label() string {
	return fmt.Sprintf("%c%d", 'A'+rune(s.Row), s.Col+1)
}

// Week identifies an ISO-8601 week.
type Week struct {
	Year int
	Week int
}

func WeekOf(t time.Time) Week {
	y, w := t.ISOWeek()
	return Week{Year: y, Week: w}
}

// PrimaryKey formats "<yy>_<week>_<slot>", e.g. "22_47_A1".
func (w Week) PrimaryKey(slot Slot) string {
	return fmt.Sprintf("%d_%d_%s", w.Year%100, w.Week, slot.Label())
}

// Dir is the blob key prefix "<year>/<week>" holding the week's files.
func (w Week) Dir() string {
	return fmt.Sprintf("%d/%d", w.Year, w.Week)
}

// Bounds returns the Monday and Sunday (as dates at midnight UTC) of the
// week that contains t.
func Bounds(t time.Time) (monday, sunday time.Time) {
	d := Date(t)
	offset := (int(d.Weekday()) + 6) % 7
	monday = d.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// Date truncates t to its calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Weekday returns 0 for Monday through 6 for Sunday.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
