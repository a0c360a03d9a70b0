package models

import "time"

type Material struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	ClassID     uint    `json:"class_id" gorm:"not null;index"`
	Title       string  `json:"title" gorm:"not null;size:200"`
	Description *string `json:"description" gorm:"type:text"`
	FileName    string  `json:"file_name" gorm:"not null;size:255"`
	StorageKey  string  `json:"-" gorm:"not null;size:500"`
	MimeType    string  `json:"mime_type" gorm:"size:120"`
	Size        int64   `json:"size"`
	UploadedBy  uint    `json:"uploaded_by" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Class *Class `json:"class,omitempty" gorm:"foreignKey:ClassID"`
}

func (Material) TableName() string {
	return "materials"
}
