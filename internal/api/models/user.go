package models

import (
	"github.com/greengig/greengig/internal/reward"
	"github.com/greengig/greengig/internal/user"
)

// RewardSummary is a user's balance after a reward operation.
type RewardSummary struct {
	UserID        string   `json:"userId"`
	RewardPoints  int      `json:"rewardPoints"`
	Badges        []string `json:"badges"`
	BadgesAwarded []string `json:"badgesAwarded"`
}

// NewRewardSummary builds a summary. awarded may be nil.
func NewRewardSummary(u *user.User, awarded []string) RewardSummary {
	if awarded == nil {
		awarded = []string{}
	}
	badges := u.Badges
	if badges == nil {
		badges = []string{}
	}
	return RewardSummary{
		UserID:        u.ID,
		RewardPoints:  u.RewardPoints,
		Badges:        badges,
		BadgesAwarded: awarded,
	}
}

// UserProfile is a user's reward standing.
type UserProfile struct {
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	PreferredMode string    `json:"preferredMode,omitempty"`
	RewardPoints  int       `json:"rewardPoints"`
	Badges        []string  `json:"badges"`
	CreatedAt     Timestamp `json:"createdAt"`
}

// NewUserProfile converts a domain user.
func NewUserProfile(u *user.User) UserProfile {
	p := UserProfile{
		UserID:       u.ID,
		Name:         u.Name,
		RewardPoints: u.RewardPoints,
		Badges:       u.Badges,
		CreatedAt:    Timestamp(u.CreatedAt),
	}
	if u.PreferredMode.Valid() {
		p.PreferredMode = string(u.PreferredMode)
	}
	if p.Badges == nil {
		p.Badges = []string{}
	}
	return p
}

// RewardRuleList is the badge catalog.
type RewardRuleList struct {
	Items []reward.Rule `json:"items"`
}
