package profile

const DefaultIntro = "Click the Update button to register a brief self-introduction!"

// DefaultPictureURL is the placeholder painting shown until a work image is uploaded.
const DefaultPictureURL = "/first-work.png"

const (
	placeholderTitle = "Under preparation"
	placeholderDesc  = "We apologize for the inconvenience.\nThe painting is currently being prepared."
)

// DefaultSkills returns the skills a freshly provisioned account starts with.
func DefaultSkills() []Skill {
	return []Skill{
		{Name: "Next.js", Level: 5},
		{Name: "Tailwind", Level: 3},
		{Name: "Prisma", Level: 1},
		{Name: "Auth.js", Level: 3},
		{Name: "Supabase", Level: 4},
	}
}

// DefaultWorks returns WorkCount placeholder paintings.
func DefaultWorks() []Work {
	works := make([]Work, WorkCount)
	for i := range works {
		works[i] = Work{
			Title:      placeholderTitle,
			Desc:       placeholderDesc,
			PictureURL: DefaultPictureURL,
		}
	}
	return works
}

// New returns a profile populated with defaults for a first sign-in.
func New(id, name, email string) Profile {
	return Profile{
		ID:     id,
		Name:   name,
		Email:  email,
		Intro:  DefaultIntro,
		Skills: DefaultSkills(),
		Works:  DefaultWorks(),
	}
}

// Normalize forces the fixed cardinalities on a stored profile: extra entries
// are dropped and missing ones are filled from the defaults.
func Normalize(p Profile) Profile {
	p.Skills = fitSkills(p.Skills)
	p.Works = fitWorks(p.Works)
	return p
}

func fitSkills(in []Skill) []Skill {
	out := DefaultSkills()
	copy(out, in)
	return out
}

func fitWorks(in []Work) []Work {
	out := DefaultWorks()
	copy(out, in)
	return out
}
