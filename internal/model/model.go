package model

import "time"

// Workshop is one catalogue entry. Description may be empty, in which case
// Summary is used wherever a long text is needed.
type Workshop struct {
	ID          string   `json:"id" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`

	FormatID      string   `json:"format_id"`
	AreaIDs       []string `json:"area_ids"`
	AudienceIDs   []string `json:"audience_ids"`
	DepartmentIDs []string `json:"department_ids"`
	InstructorIDs []string `json:"instructor_ids"`
	SeriesID      string   `json:"series_id,omitempty"`

	IsActive bool `json:"is_active"`
}

// Offering is one scheduled occurrence of a workshop.
type Offering struct {
	// ID becomes the event UID, so it is limited to printable ASCII
	// without TEXT delimiters.
	ID         string `validate:"required,printascii,excludesall=0x2C;\\"`
	WorkshopID string `validate:"required"`

	Start time.Time `validate:"required"`
	End   time.Time `validate:"required,gtfield=Start"`

	// Location empty means "to be announced".
	Location        string
	Capacity        int    `validate:"gte=0"`
	RegistrationURL string `validate:"omitempty,url"`

	// Quarter/Year are optional scheduling metadata ("Winter", 2025).
	Quarter string
	Year    int
}

// Duration returns End-Start.
func (o Offering) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// Lookup is a display entity referenced by id from a Workshop (format,
// instructor, research area, audience, department, series).
type Lookup struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label,omitempty"`
	Name  string `json:"name,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// DisplayName returns Label, falling back to Name.
func (l Lookup) DisplayName() string {
	if l.Label != "" {
		return l.Label
	}
	return l.Name
}

// EventRecord is a provider-agnostic calendar event derived from one
// offering. UID is derived from the offering identity.
type EventRecord struct {
	UID         string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	URL         string
}
