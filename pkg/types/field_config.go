package types

import (
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeTextarea    FieldType = "textarea"
	FieldTypeNumber      FieldType = "number"
	FieldTypeDate        FieldType = "date"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiselect FieldType = "multiselect"
	FieldTypePhone       FieldType = "phone"
	FieldTypeEmail       FieldType = "email"
	FieldTypeFile        FieldType = "file"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeTextarea, FieldTypeNumber, FieldTypeDate, FieldTypeSelect,
		FieldTypeMultiselect, FieldTypePhone, FieldTypeEmail, FieldTypeFile:
		return true
	}
	return false
}

func (t FieldType) HasOptions() bool {
	return t == FieldTypeSelect || t == FieldTypeMultiselect
}

type ValidationRules struct {
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   *string  `json:"pattern,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

func (v *ValidationRules) Scan(src any) error {
	return scanJSON(v, src)
}

func (v *ValidationRules) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type FieldOptions []FieldOption

func (o *FieldOptions) Scan(src any) error {
	return scanJSON(o, src)
}

func (o FieldOptions) Value() (driver.Value, error) {
	if o == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

type FieldConfiguration struct {
	ID           string           `db:"id" json:"id"`
	Name         string           `db:"name" json:"name"`
	Label        string           `db:"label" json:"label"`
	FieldType    FieldType        `db:"field_type" json:"fieldType"`
	Required     bool             `db:"required" json:"required"`
	Validation   *ValidationRules `db:"validation" json:"validation"`
	Options      FieldOptions     `db:"options" json:"options"`
	DefaultValue *string          `db:"default_value" json:"defaultValue"`
	IsActive     bool             `db:"is_active" json:"isActive"`
	DisplayOrder int              `db:"display_order" json:"displayOrder"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updatedAt"`
}

func (f *FieldConfiguration) Validate() error {
	verr := new(ValidationError)
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		verr.Add("name", "name is required")
	}
	if strings.TrimSpace(f.Label) == "" {
		verr.Add("label", "label is required")
	}
	if !f.FieldType.Valid() {
		verr.Add("fieldType", "unsupported field type")
	}
	if f.FieldType.HasOptions() && len(f.Options) == 0 {
		verr.Add("options", "choice fields need at least one option")
	}
	if f.Validation != nil && f.Validation.Pattern != nil {
		if _, err := regexp.Compile(*f.Validation.Pattern); err != nil {
			verr.Add("validation.pattern", "pattern is not a valid regular expression")
		}
	}
	if f.Validation != nil && f.Validation.MinLength != nil && f.Validation.MaxLength != nil &&
		*f.Validation.MinLength > *f.Validation.MaxLength {
		verr.Add("validation.maxLength", "maxLength must not be below minLength")
	}
	return verr.OrNil()
}
