// Package draft owns the in-progress report. Every async result passes through a
// freshness check here before it may touch the draft.
package draft

import (
	"errors"
	"slices"
	"sync"

	"github.com/joseph-ayodele/missing-persons-intake/constants"
	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
	"github.com/joseph-ayodele/missing-persons-intake/internal/llm"
)

var (
	ErrContactIndex    = errors.New("contact index out of range")
	ErrLastContact     = errors.New("at least one contact entry must remain")
	ErrUnknownLocation = errors.New("unknown location preset")
)

// Ticket identifies one location resolution. Only the most recently issued ticket
// may apply coordinates. A bound ticket is also tied to the image generation it
// was issued under.
type Ticket struct {
	seq        uint64
	generation uint64
	bound      bool
}

// MergeResult reports what Merge did.
type MergeResult struct {
	Applied bool
	// LocationText is the extracted location, set when it should be resolved.
	LocationText string
}

// Reconciler serializes all writes to one ReportDraft.
type Reconciler struct {
	mu          sync.Mutex
	draft       entity.ReportDraft
	generation  uint64
	locationSeq uint64
}

func NewReconciler() *Reconciler {
	return &Reconciler{draft: entity.NewReportDraft()}
}

// Snapshot returns a deep copy of the current draft.
func (r *Reconciler) Snapshot() entity.ReportDraft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft.Clone()
}

// Generation returns the live image generation.
func (r *Reconciler) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// BeginImage records a newly chosen image for analysis and advances the
// generation. Results captured under older generations become stale.
func (r *Reconciler) BeginImage(photo *entity.Photo) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.draft.Photo = clonePhoto(photo)
	return r.generation
}

// SetPhoto replaces the photo without analysis. The generation is unchanged.
func (r *Reconciler) SetPhoto(photo *entity.Photo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft.Photo = clonePhoto(photo)
}

// ClearPhoto unsets the photo.
func (r *Reconciler) ClearPhoto() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft.Photo = nil
}

// Merge applies extracted fields captured under generation gen. A present
// extracted value replaces the draft value, even one the user typed; an absent one
// leaves the draft alone. Stale generations are a no-op.
func (r *Reconciler) Merge(gen uint64, f llm.ExtractedFields) MergeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return MergeResult{}
	}

	d := &r.draft
	set(&d.Name, f.Name)
	set(&d.Age, f.Age)
	set(&d.Description, f.Description)
	set(&d.MissingSince, f.MissingSince)
	set(&d.Category, f.Category)
	set(&d.ContactName, f.ContactName)
	set(&d.ContactPhone, f.ContactPhone)
	if f.Gender != nil && *f.Gender != "" {
		d.Gender = constants.Gender(*f.Gender)
	}
	if len(f.Contacts) > 0 {
		d.AdditionalContacts = append([]entity.Contact(nil), f.Contacts...)
	}

	res := MergeResult{Applied: true}
	if f.Location != nil && *f.Location != "" {
		d.LocationPreset = constants.Other
		d.LocationManualText = *f.Location
		res.LocationText = *f.Location
	}
	return res
}

// BeginLocation issues a ticket for a new resolution, superseding any earlier
// one. bindGeneration ties the ticket to the current image generation as well,
// for resolutions triggered by an extraction.
func (r *Reconciler) BeginLocation(bindGeneration bool) Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locationSeq++
	return Ticket{seq: r.locationSeq, generation: r.generation, bound: bindGeneration}
}

// ApplyCoordinates stores the outcome of the resolution identified by t. A nil
// coordinate clears both values. It reports false for stale tickets.
func (r *Reconciler) ApplyCoordinates(t Ticket, c *entity.Coordinate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.currentLocked(t) {
		return false
	}
	if c == nil {
		r.draft.Coordinates = nil
	} else {
		cc := *c
		r.draft.Coordinates = &cc
	}
	return true
}

// Current reports whether t is still the latest ticket.
func (r *Reconciler) Current(t Ticket) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentLocked(t)
}

func (r *Reconciler) currentLocked(t Ticket) bool {
	if t.seq != r.locationSeq {
		return false
	}
	return !t.bound || t.generation == r.generation
}

// SelectLocationPreset sets the preset. It returns the text to resolve and true
// for every preset except the manual-entry sentinel.
func (r *Reconciler) SelectLocationPreset(preset string) (string, bool, error) {
	if !slices.Contains(constants.LocationPresets, preset) {
		return "", false, ErrUnknownLocation
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft.LocationPreset = preset
	if preset == constants.Other {
		return "", false, nil
	}
	return preset, true, nil
}

// SetManualLocation records typed location text and selects the sentinel. It
// does not resolve; callers resolve on blur or explicit search.
func (r *Reconciler) SetManualLocation(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft.LocationPreset = constants.Other
	r.draft.LocationManualText = text
}

// Edit is a manual change to scalar fields; nil fields are left alone.
type Edit struct {
	Name               *string
	Age                *string
	Gender             *constants.Gender
	Description        *string
	Category           *string
	CategoryManualText *string
	MissingSince       *string
	ContactName        *string
	ContactPhone       *string
}

// ApplyEdit applies a manual edit. Unlike Merge, a present empty value clears.
func (r *Reconciler) ApplyEdit(e Edit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := &r.draft
	assign(&d.Name, e.Name)
	assign(&d.Age, e.Age)
	assign(&d.Description, e.Description)
	assign(&d.Category, e.Category)
	assign(&d.CategoryManualText, e.CategoryManualText)
	assign(&d.MissingSince, e.MissingSince)
	assign(&d.ContactName, e.ContactName)
	assign(&d.ContactPhone, e.ContactPhone)
	if e.Gender != nil {
		d.Gender = *e.Gender
	}
}

// AddContact appends an empty placeholder contact.
func (r *Reconciler) AddContact() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft.AdditionalContacts = append(r.draft.AdditionalContacts, entity.Contact{})
}

// RemoveContact deletes entry i; the last remaining entry cannot be removed.
func (r *Reconciler) RemoveContact(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.draft.AdditionalContacts
	if i < 0 || i >= len(list) {
		return ErrContactIndex
	}
	if len(list) == 1 {
		return ErrLastContact
	}
	r.draft.AdditionalContacts = append(list[:i:i], list[i+1:]...)
	return nil
}

// SetContact overwrites entry i.
func (r *Reconciler) SetContact(i int, c entity.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.draft.AdditionalContacts) {
		return ErrContactIndex
	}
	r.draft.AdditionalContacts[i] = c
	return nil
}

// Reset restores the initial draft after a successful submission. Both tokens
// advance, so nothing still in flight can write into the fresh draft.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft = entity.NewReportDraft()
	r.generation++
	r.locationSeq++
}

func set(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func assign(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func clonePhoto(p *entity.Photo) *entity.Photo {
	if p == nil {
		return nil
	}
	out := *p
	out.Data = append([]byte(nil), p.Data...)
	return &out
}
