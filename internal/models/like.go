package models

// Like is one user's like of a song or post. A user likes a given item at
// most once.
type Like struct {
	BaseModel
	UserID      string      `gorm:"type:uuid;not null;uniqueIndex:idx_likes_user_content" json:"userId"`
	ContentID   string      `gorm:"type:uuid;not null;uniqueIndex:idx_likes_user_content;index" json:"contentId"`
	ContentType ContentType `gorm:"type:varchar(10);not null;uniqueIndex:idx_likes_user_content" json:"contentType"`
}
