package domain

type Instructor struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	Bio            string `json:"bio" yaml:"bio"`
	ImageURL       string `json:"imageUrl,omitempty" yaml:"imageUrl"`
	Specialization string `json:"specialization" yaml:"specialization"`
}

type TrainingProgram struct {
	ID                  string       `json:"id" yaml:"id"`
	Title               string       `json:"title" yaml:"title"`
	Slug                string       `json:"slug" yaml:"slug"`
	ShortDescription    string       `json:"shortDescription" yaml:"shortDescription"`
	DetailedDescription string       `json:"detailedDescription" yaml:"detailedDescription"`
	Schedule            string       `json:"schedule" yaml:"schedule"`
	Duration            string       `json:"duration" yaml:"duration"`
	Price               string       `json:"price" yaml:"price"`
	Instructors         []Instructor `json:"instructors" yaml:"instructors"`
	Image               string       `json:"image,omitempty" yaml:"image"`
	Learnings           []string     `json:"learnings" yaml:"learnings"`
}

type Resource struct {
	ID            string `json:"id" yaml:"id"`
	Title         string `json:"title" yaml:"title"`
	Slug          string `json:"slug" yaml:"slug"`
	Description   string `json:"description" yaml:"description"`
	DownloadURL   string `json:"downloadUrl,omitempty" yaml:"downloadUrl"`
	Content       string `json:"content,omitempty" yaml:"content"`
	Type          string `json:"type" yaml:"type" enum:"guide,article,datasheet,video"`
	ImageURL      string `json:"imageUrl,omitempty" yaml:"imageUrl"`
	Category      string `json:"category" yaml:"category"`
	PublishedDate string `json:"publishedDate" yaml:"publishedDate"`
}

type Testimonial struct {
	ID               string `json:"id" yaml:"id"`
	ClientName       string `json:"clientName" yaml:"clientName"`
	Company          string `json:"company,omitempty" yaml:"company"`
	Testimonial      string `json:"testimonial" yaml:"testimonial"`
	ProjectTitle     string `json:"projectTitle,omitempty" yaml:"projectTitle"`
	CaseStudySummary string `json:"caseStudySummary,omitempty" yaml:"caseStudySummary"`
	ImageURL         string `json:"imageUrl,omitempty" yaml:"imageUrl"`
	ClientImageURL   string `json:"clientImageUrl,omitempty" yaml:"clientImageUrl"`
}

type ShowcaseActivity struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	ImageURL    string `json:"imageUrl" yaml:"imageUrl"`
	Link        string `json:"link,omitempty" yaml:"link"`
	Category    string `json:"category" yaml:"category"`
}

// Catalog kinds as stored in content rows.
const (
	ContentPrograms     = "programs"
	ContentResources    = "resources"
	ContentTestimonials = "testimonials"
	ContentShowcase     = "showcase"
)

// ContentItem is one stored catalog entry.
type ContentItem struct {
	Kind        string `json:"kind"`
	Slug        string `json:"slug"`
	PayloadJSON string `json:"payload_json"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}
