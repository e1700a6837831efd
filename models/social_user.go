package models

// SocialUser holds the social graph edges of one identity. ID is the
// external identity id.
//
// b in Followers(a) iff a in Following(b). The relation is maintained by
// paired writes, never by the store.
type SocialUser struct {
	ID        int64    `json:"id"`
	Followers []int64  `json:"followers"`
	Following []int64  `json:"following"`
	Tags      []string `json:"tags"`
}

// IsFollowing reports whether u follows target.
func (u *SocialUser) IsFollowing(target int64) bool {
	return containsID(u.Following, target)
}

// HasFollower reports whether follower is in u's followers.
func (u *SocialUser) HasFollower(follower int64) bool {
	return containsID(u.Followers, follower)
}

// HasTag reports whether u is subscribed to tag.
func (u *SocialUser) HasTag(tag string) bool {
	for _, t := range u.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
