package flow

import (
	"application-intake/internal/models"
)

// Section identifiers shared by the built-in flows.
const (
	SectionWelcome      = "welcome"
	SectionIdentity     = "identity"
	SectionVenture      = "venture"
	SectionIdea         = "idea"
	SectionTeam         = "team"
	SectionDocuments    = "documents"
	SectionDeclarations = "declarations"
	SectionReview       = "review"
)

const (
	FounderFlowID   = "founder"
	InnovatorFlowID = "innovator"
)

// Minimum lengths of the built-in essay answers.
const (
	PitchMinChars       = 50
	IdeaSummaryMinChars = 100
)

// MaxTextChars is the longest text the draft schema stores in one field.
const MaxTextChars = 20000

var roleSelection = Selection{
	Field: models.DomainRole,
	Options: []Option{
		{Value: string(models.RoleFounder), Label: "I am building a venture"},
		{Value: string(models.RoleInnovator), Label: "I have an idea or research to develop"},
	},
}

// StandardDeclarations are the consent items of every built-in flow.
var StandardDeclarations = []ConsentItem{
	{ID: "isAccurate", Label: "The information provided is accurate"},
	{ID: "agreesToTerms", Label: "I agree to the programme terms"},
	{ID: "agreesToCommunication", Label: "I agree to be contacted about my application"},
}

var skillOptions = []Option{
	{Value: "engineering", Label: "Engineering"},
	{Value: "design", Label: "Design"},
	{Value: "business", Label: "Business"},
	{Value: "marketing", Label: "Marketing"},
	{Value: "research", Label: "Research"},
	{Value: "finance", Label: "Finance"},
}

// FounderFlow is the default flow for founders. Venture steps branch on the
// selected track.
func FounderFlow() *Flow {
	return New(FounderFlowID).
		ForRole(models.RoleFounder).
		Step(
			Intro("welcome", SectionWelcome, "Welcome").
				WithSubtitle("Tell us about you and your venture"),
			Choice("role_selection", SectionWelcome, "How would you describe yourself?", roleSelection),

			Form("identity", SectionIdentity, "About you",
				Required("Full name", "founder.fullName", InputText),
				Required("Email", "founder.email", InputEmail),
				Required("Phone", "founder.phone", InputPhone),
				Optional("City", "founder.city", InputText),
				Optional("LinkedIn", "founder.linkedIn", InputURL),
			),
			Choice("status", SectionIdentity, "What is your current status?", Selection{
				Field: "founder.status",
				Options: []Option{
					{Value: "full_time", Label: "Full time on the venture"},
					{Value: "part_time", Label: "Part time on the venture"},
					{Value: "student", Label: "Student"},
				},
			}),
			Form("background", SectionIdentity, "Background",
				Required("Highest education", "founder.education", InputText),
				Optional("Relevant experience", "founder.experience", InputTextarea),
			),
			Choice("skills", SectionIdentity, "Which skills do you bring?", Selection{
				Field:   "founder.skills",
				Multi:   true,
				Options: skillOptions,
			}),

			Choice("track_selection", SectionVenture, "Which track are you applying to?", Selection{
				Field: "venture.track",
				Options: []Option{
					{Value: string(models.TrackStartup), Label: "Startup"},
					{Value: string(models.TrackResearcher), Label: "Researcher"},
					{Value: string(models.TrackInnovatorResidence), Label: "Innovator in residence"},
				},
			}),
			Form("venture_basics", SectionVenture, "Your venture",
				Required("Venture name", "venture.name", InputText),
				Optional("Tagline", "venture.tagline", InputText),
				Required("Sector", "venture.sector", InputSelect),
				Required("Stage", "venture.stage", InputSelect),
				Optional("Website", "venture.website", InputURL),
			),
			Form("startup_registration", SectionVenture, "Company registration",
				Required("Legal name", "venture.startup.legalName", InputText),
				Required("Registration number", "venture.startup.registrationNumber", InputText),
				Optional("Incorporation date", "venture.startup.incorporationDate", InputDate),
				Optional("Team size", "venture.startup.teamSize", InputNumber),
			).When(FieldEquals("venture.track", string(models.TrackStartup))),
			Form("research_institute", SectionVenture, "Research affiliation",
				Required("Institute", "venture.research.institute", InputText),
				Optional("Department", "venture.research.department", InputText),
				Required("Supervisor", "venture.research.supervisorName", InputText),
				Optional("Technology readiness level", "venture.research.trl", InputSelect),
			).When(FieldEquals("venture.track", string(models.TrackResearcher))),
			Form("residence_commitment", SectionVenture, "Residence commitment",
				Required("Commitment in months", "venture.residence.commitmentMonths", InputNumber),
				Required("Earliest start date", "venture.residence.startDate", InputDate),
				Optional("Hours per week", "venture.residence.hoursPerWeek", InputNumber),
			).When(FieldEquals("venture.track", string(models.TrackInnovatorResidence))),
			Essay("pitch", SectionVenture, "Your pitch",
				EssayQuestion{Label: "What problem are you solving?", Field: "venture.problem", MinChars: PitchMinChars},
				EssayQuestion{Label: "How does your solution work?", Field: "venture.solution", MinChars: PitchMinChars},
			),

			List("co_founders", SectionTeam, "Co-founders", models.DomainCoFounders).
				WithSubtitle("Add anyone building the venture with you"),

			Upload("documents", SectionDocuments, "Supporting documents",
				UploadSlot{Name: "pitchDeck", Label: "Pitch deck"},
				UploadSlot{Name: "cv", Label: "CV"},
			),
			Consent("declarations", SectionDeclarations, "Declarations", StandardDeclarations...),
			Review("final_review", SectionReview, "Review and submit"),
		).
		MustBuild()
}

// InnovatorFlow is the flow for individual innovators.
func InnovatorFlow() *Flow {
	return New(InnovatorFlowID).
		ForRole(models.RoleInnovator).
		Step(
			Intro("welcome", SectionWelcome, "Welcome").
				WithSubtitle("Tell us about you and your idea"),
			Choice("role_selection", SectionWelcome, "How would you describe yourself?", roleSelection),

			Form("innovator_identity", SectionIdentity, "About you",
				Required("Full name", "innovator.leadName", InputText),
				Required("Email", "innovator.email", InputEmail),
				Required("Phone", "innovator.phone", InputPhone),
				Optional("City", "innovator.city", InputText),
			),
			Choice("professional_status", SectionIdentity, "What is your professional status?", Selection{
				Field: "innovator.professionalStatus",
				Options: []Option{
					{Value: "researcher", Label: "Researcher"},
					{Value: "student", Label: "Student"},
					{Value: "professional", Label: "Working professional"},
					{Value: "independent", Label: "Independent"},
				},
			}),
			Form("institution", SectionIdentity, "Your institution",
				Required("Institution", "innovator.institution", InputText),
			).When(FieldIn("innovator.professionalStatus", "researcher", "student")),

			Form("idea_basics", SectionIdea, "Your idea",
				Required("Idea title", "innovator.ideaTitle", InputText),
				Optional("Availability", "innovator.availability", InputSelect),
			),
			Essay("idea_summary", SectionIdea, "Describe your idea",
				EssayQuestion{Label: "Summarise the idea and who it helps", Field: "innovator.ideaSummary", MinChars: IdeaSummaryMinChars},
			),
			Choice("innovator_skills", SectionIdea, "Which skills do you bring?", Selection{
				Field:   "innovator.skills",
				Multi:   true,
				Options: skillOptions,
			}),

			Upload("documents", SectionDocuments, "Supporting documents",
				UploadSlot{Name: "cv", Label: "CV"},
			),
			Consent("declarations", SectionDeclarations, "Declarations", StandardDeclarations...),
			Review("final_review", SectionReview, "Review and submit"),
		).
		MustBuild()
}
