// Package validate checks a final draft and flattens it for persistence.
package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
	"github.com/joseph-ayodele/missing-persons-intake/internal/entity"
)

// Field identifiers reported in a Failure.
const (
	FieldName         = "name"
	FieldCategory     = "category"
	FieldPhoto        = "photo"
	FieldDescription  = "description"
	FieldContactPhone = "contact_phone"
	FieldMissingSince = "missing_since"
)

// Failure lists every unmet requirement of a draft, in field order.
type Failure struct {
	MissingFields []string
	Details       []common.ValidationError
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: missing or invalid fields: %s", common.ErrValidation, strings.Join(f.MissingFields, ", "))
}

func (f *Failure) Unwrap() error { return common.ErrValidation }

// Validate returns the persistable payload for d or a *Failure.
func Validate(d entity.ReportDraft) (entity.PersistablePayload, error) {
	var photoData []byte
	if d.Photo != nil {
		photoData = d.Photo.Data
	}

	v := common.NewValidator().
		Field(FieldName, d.Name, common.Required).
		Field(FieldCategory, d.SelectedCategory(), common.Required).
		Field(FieldPhoto, photoData, common.Required).
		Field(FieldDescription, d.Description, common.Required).
		Field(FieldContactPhone, d.ContactPhone, common.Required).
		Field(FieldMissingSince, d.MissingSince, date)
	if v.HasErrors() {
		return entity.PersistablePayload{}, &Failure{MissingFields: v.Fields(), Details: v.Errors()}
	}

	p := entity.PersistablePayload{
		Name:         strings.TrimSpace(d.Name),
		Age:          parseAge(d.Age),
		Gender:       string(d.Gender),
		Location:     strings.TrimSpace(d.SelectedLocation()),
		Description:  strings.TrimSpace(d.Description),
		Category:     strings.TrimSpace(d.SelectedCategory()),
		MissingSince: parseDate(d.MissingSince),
		ContactName:  strings.TrimSpace(d.ContactName),
		ContactPhone: strings.TrimSpace(d.ContactPhone),
		Photo:        d.Photo,
	}
	if d.Coordinates != nil {
		lat, lon := d.Coordinates.Latitude, d.Coordinates.Longitude
		p.Latitude, p.Longitude = &lat, &lon
	}
	p.AdditionalContactNames = make([]string, len(d.AdditionalContacts))
	p.AdditionalContactPhones = make([]string, len(d.AdditionalContacts))
	for i, c := range d.AdditionalContacts {
		p.AdditionalContactNames[i] = c.Name
		p.AdditionalContactPhones[i] = c.Phone
	}
	return p, nil
}

// date accepts a blank value or YYYY-MM-DD.
func date(field string, value interface{}) *common.ValidationError {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" || parseDate(s) != nil {
		return nil
	}
	return &common.ValidationError{Field: field, Value: value, Message: "must be a date (YYYY-MM-DD)"}
}

func parseAge(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func parseDate(s string) *time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}
