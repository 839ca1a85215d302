package resource

// Blog is a published or draft post
type Blog struct {
	Base
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	Content    string   `json:"content"`
	Excerpt    string   `json:"excerpt,omitempty"`
	CategoryID string   `json:"category,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Author     string   `json:"author,omitempty"`
	Published  bool     `json:"published"`
}

// BlogFilter narrows the post list
type BlogFilter struct {
	CategoryID string `json:"category,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Search     string `json:"search,omitempty"`
	Page
}

// BlogInput creates or updates a post
type BlogInput struct {
	Title      string   `json:"title,omitempty"`
	Content    string   `json:"content,omitempty"`
	Excerpt    string   `json:"excerpt,omitempty"`
	CategoryID string   `json:"category,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Published  *bool    `json:"published,omitempty"`
}

// Category groups blog posts
type Category struct {
	Base
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// CategoryInput creates or updates a category
type CategoryInput struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// QATag labels forum questions
type QATag struct {
	Base
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	QuestionCount int    `json:"questionCount"`
}

// QATagFilter narrows the tag list
type QATagFilter struct {
	Search string `json:"search,omitempty"`
}

// QATagInput creates a tag
type QATagInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
