package models

// Post is a feed entry, optionally carrying one media file and pointing at
// a song or a challenge.
type Post struct {
	BaseModel
	AuthorID           string     `gorm:"type:uuid;not null;index" json:"authorId"`
	Content            string     `gorm:"type:text;not null" json:"content"`
	MediaURL           string     `json:"mediaUrl,omitempty"`
	MediaKey           string     `json:"-"`
	MediaType          MediaType  `gorm:"type:varchar(10);not null;default:'none'" json:"mediaType"`
	Visibility         Visibility `gorm:"type:varchar(20);not null;default:'public';index" json:"visibility"`
	LikesCount         int64      `gorm:"not null;default:0" json:"likesCount"`
	CommentsCount      int64      `gorm:"not null;default:0" json:"commentsCount"`
	RelatedSongID      *string    `gorm:"type:uuid;index" json:"relatedSongId,omitempty"`
	RelatedChallengeID *string    `gorm:"type:uuid;index" json:"relatedChallengeId,omitempty"`
	AIGenerated        bool       `gorm:"default:false" json:"aiGenerated"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}
