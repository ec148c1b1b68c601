// internal/models/application.go
package models

import "fmt"

// Role discriminates which applicant shape is active.
type Role string

const (
	RoleFounder   Role = "founder"
	RoleInnovator Role = "innovator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleFounder || r == RoleInnovator
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Track narrows the founder venture to one detail shape.
type Track string

const (
	TrackStartup            Track = "startup"
	TrackResearcher         Track = "researcher"
	TrackInnovatorResidence Track = "innovator_residence"
)

// Valid reports whether t is a known track.
func (t Track) Valid() bool {
	switch t {
	case TrackStartup, TrackResearcher, TrackInnovatorResidence:
		return true
	}
	return false
}

// ParseTrack converts a raw string into a Track.
func ParseTrack(s string) (Track, error) {
	t := Track(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown track %q", s)
	}
	return t, nil
}

// Applicant is implemented by the profile record of each role. Only the
// profile matching ApplicationData.Role is ever returned as an Applicant.
type Applicant interface {
	Role() Role
	ContactEmail() string
	DisplayName() string
}

// FounderProfile holds identity, background and contact details of a founder.
type FounderProfile struct {
	FullName   string   `json:"fullName,omitempty"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	City       string   `json:"city,omitempty"`
	Country    string   `json:"country,omitempty"`
	LinkedIn   string   `json:"linkedIn,omitempty"`
	Status     string   `json:"status,omitempty"`
	Education  string   `json:"education,omitempty"`
	Experience string   `json:"experience,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Motivation string   `json:"motivation,omitempty"`
}

func (p *FounderProfile) Role() Role           { return RoleFounder }
func (p *FounderProfile) ContactEmail() string { return p.Email }
func (p *FounderProfile) DisplayName() string  { return p.FullName }

// InnovatorProfile holds the lead innovator's details.
type InnovatorProfile struct {
	LeadName           string   `json:"leadName,omitempty"`
	Email              string   `json:"email,omitempty"`
	Phone              string   `json:"phone,omitempty"`
	City               string   `json:"city,omitempty"`
	ProfessionalStatus string   `json:"professionalStatus,omitempty"`
	Institution        string   `json:"institution,omitempty"`
	Skills             []string `json:"skills,omitempty"`
	IdeaTitle          string   `json:"ideaTitle,omitempty"`
	IdeaSummary        string   `json:"ideaSummary,omitempty"`
	Availability       string   `json:"availability,omitempty"`
}

func (p *InnovatorProfile) Role() Role           { return RoleInnovator }
func (p *InnovatorProfile) ContactEmail() string { return p.Email }
func (p *InnovatorProfile) DisplayName() string  { return p.LeadName }

// TrackDetails is implemented by the per-track venture records.
type TrackDetails interface {
	Track() Track
}

// StartupDetails holds company registration information.
type StartupDetails struct {
	LegalName          string `json:"legalName,omitempty"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	IncorporationDate  string `json:"incorporationDate,omitempty"`
	TeamSize           string `json:"teamSize,omitempty"`
	Revenue            string `json:"revenue,omitempty"`
}

func (StartupDetails) Track() Track { return TrackStartup }

// ResearchDetails holds the host institute of a research venture.
type ResearchDetails struct {
	Institute      string `json:"institute,omitempty"`
	Department     string `json:"department,omitempty"`
	SupervisorName string `json:"supervisorName,omitempty"`
	ResearchArea   string `json:"researchArea,omitempty"`
	TRL            string `json:"trl,omitempty"`
}

func (ResearchDetails) Track() Track { return TrackResearcher }

// ResidenceDetails holds the residency commitment of an innovator-in-residence.
type ResidenceDetails struct {
	CommitmentMonths string `json:"commitmentMonths,omitempty"`
	StartDate        string `json:"startDate,omitempty"`
	Relocating       bool   `json:"relocating,omitempty"`
	HoursPerWeek     string `json:"hoursPerWeek,omitempty"`
}

func (ResidenceDetails) Track() Track { return TrackInnovatorResidence }

// Venture is the founder's venture record. Track selects which detail record
// is relevant; the others are retained but unreachable through Details.
type Venture struct {
	Name        string           `json:"name,omitempty"`
	Tagline     string           `json:"tagline,omitempty"`
	Sector      string           `json:"sector,omitempty"`
	Stage       string           `json:"stage,omitempty"`
	Website     string           `json:"website,omitempty"`
	Description string           `json:"description,omitempty"`
	Problem     string           `json:"problem,omitempty"`
	Solution    string           `json:"solution,omitempty"`
	Track       Track            `json:"track,omitempty"`
	Startup     StartupDetails   `json:"startup"`
	Research    ResearchDetails  `json:"research"`
	Residence   ResidenceDetails `json:"residence"`
}

// Details returns the detail record selected by Track, or nil when no
// track is chosen yet.
func (v Venture) Details() TrackDetails {
	switch v.Track {
	case TrackStartup:
		return v.Startup
	case TrackResearcher:
		return v.Research
	case TrackInnovatorResidence:
		return v.Residence
	default:
		return nil
	}
}

// CoFounder is a team member with a stable identity.
type CoFounder struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
	SkillArea   string `json:"skillArea,omitempty"`
	FullTime    bool   `json:"fullTime"`
}

// ApplicationData is the full state snapshot persisted as a draft.
type ApplicationData struct {
	Role         Role              `json:"role,omitempty"`
	Founder      FounderProfile    `json:"founder"`
	Innovator    InnovatorProfile  `json:"innovator"`
	Venture      Venture           `json:"venture"`
	CoFounders   []CoFounder       `json:"coFounders"`
	Uploads      map[string]string `json:"uploads"`
	Declarations map[string]bool   `json:"declarations"`
}

// Application state domains, also the top-level keys of a draft document.
const (
	DomainRole         = "role"
	DomainFounder      = "founder"
	DomainInnovator    = "innovator"
	DomainVenture      = "venture"
	DomainCoFounders   = "coFounders"
	DomainUploads      = "uploads"
	DomainDeclarations = "declarations"
)

// Domains lists every domain in document order.
var Domains = []string{
	DomainRole, DomainFounder, DomainInnovator, DomainVenture,
	DomainCoFounders, DomainUploads, DomainDeclarations,
}

// NewApplicationData returns an empty snapshot with initialised maps.
func NewApplicationData() ApplicationData {
	return ApplicationData{
		CoFounders:   []CoFounder{},
		Uploads:      map[string]string{},
		Declarations: map[string]bool{},
	}
}

// Applicant returns the profile selected by Role, or nil when no role is set.
func (d *ApplicationData) Applicant() Applicant {
	switch d.Role {
	case RoleFounder:
		return &d.Founder
	case RoleInnovator:
		return &d.Innovator
	default:
		return nil
	}
}

// Clone returns a deep copy.
func (d ApplicationData) Clone() ApplicationData {
	out := d
	out.Founder.Skills = append([]string(nil), d.Founder.Skills...)
	out.Innovator.Skills = append([]string(nil), d.Innovator.Skills...)
	out.CoFounders = append([]CoFounder{}, d.CoFounders...)
	out.Uploads = make(map[string]string, len(d.Uploads))
	for k, v := range d.Uploads {
		out.Uploads[k] = v
	}
	out.Declarations = make(map[string]bool, len(d.Declarations))
	for k, v := range d.Declarations {
		out.Declarations[k] = v
	}
	return out
}
