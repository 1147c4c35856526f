package model

// Sentinels the extractor substitutes for fields it cannot find.
const (
	NoTitle        = "No Title Found"
	NoURL          = "No URL Found"
	NoAuthor       = "No Author Found"
	NoDate         = "No Date Found"
	NoViews        = "No Views Found"
	NoSubtitle     = "No Subtitle Found"
	NoContent      = "No Content Found"
	NoCategory     = "No Category Found"
	NoPreviousPost = "No Previous Post Found"
)

// SummaryFields is what the extractor yields for one post on a listing page.
type SummaryFields struct {
	Title    string   `bson:"title" json:"title"`
	URL      string   `bson:"url" json:"url"`
	Author   string   `bson:"author" json:"author"`
	Date     string   `bson:"date" json:"date"`
	Views    string   `bson:"views" json:"views"`
	Subtitle string   `bson:"subtitle" json:"subtitle"` // first paragraph
	Category string   `bson:"category" json:"category"`
	Tags     []string `bson:"tags" json:"tags"`
}

// Summary is the persisted listing-side record, one per distinct URL.
type Summary struct {
	Key string `bson:"_id,omitempty" json:"_id,omitempty"` // store-assigned
	ID  string `bson:"id" json:"id"`

	SummaryFields `bson:",inline"`
}

// SummaryRef is the (id, url) projection read by the detail sweep.
type SummaryRef struct {
	ID  string `bson:"id" json:"id"`
	URL string `bson:"url" json:"url"`
}

// ListingPage is one scraped homepage or category page.
type ListingPage struct {
	CategoryURL string          `json:"category_url,omitempty"`
	Page        int             `json:"page"`
	Limit       int             `json:"limit"`
	TotalPosts  int             `json:"total_posts"`
	Posts       []SummaryFields `json:"posts"`
}

// Category is one entry of the site's category widget.
type Category struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}
