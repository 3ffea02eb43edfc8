package profile

// Profile is the structured candidate profile assembled from flat
// key-value storage.
type Profile struct {
	Identity     Identity
	Summary      string
	Skills       []string
	Experience   []Experience
	Achievements []string
	Links        map[string]string
	ResumeText   string
}

// Identity holds the candidate's contact block.
type Identity struct {
	Name     string
	Headline string
	Email    string
	Phone    string
	Location string
}

// Experience is one position in the candidate's history.
type Experience struct {
	Company    string   `json:"company"`
	Role       string   `json:"role"`
	Period     string   `json:"period"`
	Highlights []string `json:"highlights"`
}
