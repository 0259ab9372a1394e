package reports

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"drivesafe/safetytips"
)

// TimestampLayout is the journal timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// InboxSourcePrefix marks reports read from the inbox directory; the file name follows it.
const InboxSourcePrefix = "inbox:"

// ErrEmptyReport is returned when a report carries no description.
var ErrEmptyReport = errors.New("report description is empty")

// Report is one incident description submitted by a driver, typed or transcribed.
type Report struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
}

// Entry is the persisted journal record for a processed report.
type Entry struct {
	Timestamp   string                `json:"timestamp"`
	Description string                `json:"description"`
	Location    string                `json:"location"`
	Type        string                `json:"type"`
	Categories  []safetytips.Category `json:"categories"`
	Tips        []string              `json:"tips"`
}

// Normalize trims fields, tidies the location, fills defaults and derives a
// stable ID.
func (r Report) Normalize(now time.Time) (Report, error) {
	r.Description = strings.TrimSpace(r.Description)
	if r.Description == "" {
		return r, ErrEmptyReport
	}
	r.Location = NormalizeLocation(r.Location)
	r.Type = strings.TrimSpace(r.Type)
	if r.Type == "" {
		r.Type = "text"
	}
	if r.Source == "" {
		r.Source = "api"
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	if r.ID == "" {
		sum := sha256.Sum256([]byte(r.Source + "|" + r.Timestamp.Format(time.RFC3339) + "|" + r.Description))
		r.ID = hex.EncodeToString(sum[:])[:16]
	}
	return r, nil
}

// NewEntry builds the journal record for r.
func NewEntry(r Report, advice safetytips.Advice) Entry {
	return Entry{
		Timestamp:   r.Timestamp.Format(TimestampLayout),
		Description: r.Description,
		Location:    r.Location,
		Type:        r.Type,
		Categories:  advice.Categories,
		Tips:        advice.Tips,
	}
}

// IsReportFile reports whether the inbox should pick up path.
func IsReportFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".json":
		return true
	default:
		return false
	}
}

// ParseFile decodes an inbox file. Plain text files hold the description;
// JSON files hold a Report object. The file name becomes the report ID.
func ParseFile(path string, data []byte, modTime time.Time) (Report, error) {
	name := filepath.Base(path)
	r := Report{Type: "voice"}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &r); err != nil {
			return r, fmt.Errorf("parse %s: %w", name, err)
		}
	case ".txt":
		r.Description = string(data)
	default:
		return r, fmt.Errorf("unsupported report file %s", name)
	}
	r.ID = strings.TrimSuffix(name, filepath.Ext(name))
	r.Source = InboxSourcePrefix + name
	if r.Timestamp.IsZero() {
		r.Timestamp = modTime.UTC().Truncate(time.Second)
	}
	return r.Normalize(modTime)
}
