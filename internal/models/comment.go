package models

type Comment struct {
	BaseModel
	UserID      string      `gorm:"type:uuid;not null;index" json:"userId"`
	ContentID   string      `gorm:"type:uuid;not null;index:idx_comments_content" json:"contentId"`
	ContentType ContentType `gorm:"type:varchar(10);not null;index:idx_comments_content" json:"contentType"`
	Text        string      `gorm:"type:text;not null" json:"text"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
