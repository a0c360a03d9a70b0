package models

import (
	"time"

	"gorm.io/datatypes"
)

type MedalRuleKind string

const (
	RuleSubmissionCount MedalRuleKind = "submission_count"
	RulePerfectScore    MedalRuleKind = "perfect_score"
	RuleAverageAtLeast  MedalRuleKind = "average_at_least"
	RuleStreak          MedalRuleKind = "streak"
)

func (k MedalRuleKind) Valid() bool {
	switch k {
	case RuleSubmissionCount, RulePerfectScore, RuleAverageAtLeast, RuleStreak:
		return true
	}
	return false
}

type MedalRule struct {
	Kind      MedalRuleKind `json:"kind" yaml:"kind"`
	Threshold float64       `json:"threshold" yaml:"threshold"`
}

type Medal struct {
	ID          uint                          `json:"id" gorm:"primaryKey"`
	Code        string                        `json:"code" gorm:"uniqueIndex;not null;size:60"`
	Name        string                        `json:"name" gorm:"not null;size:120"`
	Description string                        `json:"description" gorm:"type:text"`
	Icon        string                        `json:"icon" gorm:"size:120"`
	Rule        datatypes.JSONType[MedalRule] `json:"rule" gorm:"type:jsonb;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Medal) TableName() string {
	return "medals"
}

type UserMedal struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_user_medal"`
	MedalID      uint      `json:"medal_id" gorm:"not null;uniqueIndex:idx_user_medal"`
	SubmissionID *uint     `json:"submission_id"`
	AwardedAt    time.Time `json:"awarded_at"`

	Medal *Medal `json:"medal,omitempty" gorm:"foreignKey:MedalID"`
}

func (UserMedal) TableName() string {
	return "user_medals"
}
