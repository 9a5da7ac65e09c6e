package model

import "time"

// Follow is a directed edge in the `follows` table. Every user has an edge
// to themselves so their own posts appear in their timeline.
type Follow struct {
	FollowerID uint64    // follows.follower_id
	FollowedID uint64    // follows.followed_id
	Timestamp  time.Time // follows.timestamp
	User       *User     // the other end, hydrated in listings
}
