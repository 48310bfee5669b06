package models

type Song struct {
	BaseModel
	ArtistID     string      `gorm:"type:uuid;not null;index" json:"artistId"`
	Title        string      `gorm:"not null;index" json:"title"`
	CoverImage   string      `json:"coverImage,omitempty"`
	CoverKey     string      `json:"-"`
	AudioURL     string      `gorm:"not null" json:"audioUrl"`
	AudioKey     string      `gorm:"not null" json:"-"`
	SnippetURL   string      `json:"snippetUrl,omitempty"`
	Genre        string      `gorm:"index" json:"genre,omitempty"`
	Mood         string      `json:"mood,omitempty"`
	Description  string      `json:"description,omitempty"`
	DurationSec  int         `json:"durationSec"`
	AccessLevel  AccessLevel `gorm:"type:varchar(10);not null;default:'free'" json:"accessLevel"`
	StreamsCount int64       `gorm:"default:0" json:"streamsCount"`
	LikesCount   int64       `gorm:"default:0" json:"likesCount"`
	IsApproved   bool        `gorm:"default:true" json:"isApproved"`

	Artist *User `gorm:"foreignKey:ArtistID" json:"artist,omitempty"`
}
