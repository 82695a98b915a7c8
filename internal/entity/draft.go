package entity

import (
	"github.com/joseph-ayodele/missing-persons-intake/constants"
)

// Coordinate is a resolved latitude/longitude pair. Drafts hold it by pointer so the
// two values are always set or unset together.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Contact is one additional responsible person. Empty entries are placeholders.
type Contact struct {
	Name  string `json:"nome"`
	Phone string `json:"contacto"`
}

// Photo is the binary handle of the chosen image.
type Photo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// ReportDraft is the in-progress report being assembled by the reporter.
type ReportDraft struct {
	Name               string           `json:"name"`
	Age                string           `json:"age"` // raw form input, parsed on submit
	Gender             constants.Gender `json:"gender"`
	LocationPreset     string           `json:"location_preset"`
	LocationManualText string           `json:"location_manual_text"`
	Description        string           `json:"description"`
	Category           string           `json:"category"`
	CategoryManualText string           `json:"category_manual_text"`
	MissingSince       string           `json:"missing_since"` // YYYY-MM-DD
	Photo              *Photo           `json:"photo,omitempty"`
	Coordinates        *Coordinate      `json:"coordinates,omitempty"`
	ContactName        string           `json:"contact_name"`
	ContactPhone       string           `json:"contact_phone"`
	AdditionalContacts []Contact        `json:"additional_contacts"`
}

// NewReportDraft returns the initial form state: everything blank and one
// placeholder contact.
func NewReportDraft() ReportDraft {
	return ReportDraft{AdditionalContacts: []Contact{{}}}
}

// Clone deep-copies the draft so callers never share slices or pointers with the owner.
func (d ReportDraft) Clone() ReportDraft {
	out := d
	if d.Photo != nil {
		p := *d.Photo
		p.Data = append([]byte(nil), d.Photo.Data...)
		out.Photo = &p
	}
	if d.Coordinates != nil {
		c := *d.Coordinates
		out.Coordinates = &c
	}
	out.AdditionalContacts = append([]Contact(nil), d.AdditionalContacts...)
	return out
}

// SelectedLocation is the free text the location resolver should work on: the
// manual text when the sentinel is selected, the preset otherwise.
func (d ReportDraft) SelectedLocation() string {
	if d.LocationPreset == constants.Other {
		return d.LocationManualText
	}
	return d.LocationPreset
}

// SelectedCategory mirrors SelectedLocation for the category pair.
func (d ReportDraft) SelectedCategory() string {
	if d.Category == constants.Other {
		return d.CategoryManualText
	}
	return d.Category
}
