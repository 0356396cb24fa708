package model

import "time"

// Group is a private prediction league joined by its short code.
type Group struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatorID string    `json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Membership links a user to a group. (GroupID, UserID) is unique.
type Membership struct {
	GroupID  string    `json:"groupId"`
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// UserGroup is a group as seen from one of its members.
type UserGroup struct {
	Group
	MemberCount int       `json:"memberCount"`
	IsCreator   bool      `json:"isCreator"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// GroupMember is one row of a group's member list.
type GroupMember struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	JoinedAt     time.Time `json:"joinedAt"`
	IsCreator    bool      `json:"isCreator"`
	TotalPoints  int       `json:"totalPoints"`
	RankPosition int       `json:"rankPosition"`
}
