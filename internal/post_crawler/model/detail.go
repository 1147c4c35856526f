package model

// PostRef links to another post by display name.
type PostRef struct {
	Name string `bson:"name" json:"name"`
	URL  string `bson:"url" json:"url"`
}

// MissingPreviousPost marks a detail page without a previous-post link.
var MissingPreviousPost = PostRef{Name: NoPreviousPost, URL: ""}

// DetailFields is what the extractor yields for a post detail page.
type DetailFields struct {
	URL            string    `bson:"url" json:"url"`
	Title          string    `bson:"title" json:"title"`
	Author         string    `bson:"author" json:"author"`
	Date           string    `bson:"date" json:"date"`
	Views          string    `bson:"views" json:"views"`
	Subtitle       string    `bson:"subtitle" json:"subtitle"` // full body text
	Category       string    `bson:"category" json:"category"`
	Tags           []string  `bson:"tags" json:"tags"`
	PreviousPost   PostRef   `bson:"previous_post" json:"previous_post"`
	SuggestedPosts []PostRef `bson:"suggested_posts" json:"suggested_posts"`
}

// Usable reports whether the page produced any real content.
func (d DetailFields) Usable() bool {
	hasTitle := d.Title != "" && d.Title != NoTitle
	hasBody := d.Subtitle != "" && d.Subtitle != NoContent
	return hasTitle || hasBody
}

// Detail is the persisted full-content record, one per Summary.
type Detail struct {
	Key              string `bson:"_id,omitempty" json:"_id,omitempty"` // store-assigned
	PostID           string `bson:"post_id" json:"post_id"`
	PostCollectionID string `bson:"post_collection_id" json:"post_collection_id"` // Summary.ID

	DetailFields `bson:",inline"`
}
