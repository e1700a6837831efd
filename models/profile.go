package models

// Projection is the minimal profile snapshot of an external identity,
// embedded into post and feed responses. It is never persisted.
type Projection struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Photo    string `json:"photo"`
	Nickname string `json:"nickname"`
}

// SocialProfile is a SocialUser merged with its identity projection.
type SocialProfile struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Photo     string   `json:"photo"`
	Nickname  string   `json:"nickname"`
	Followers []int64  `json:"followers"`
	Following []int64  `json:"following"`
	Tags      []string `json:"tags"`
}

// UserSearch queries the identity service. IDs restricts the result to a
// batch of identities, Query matches names and nicknames.
type UserSearch struct {
	IDs    []int64
	Query  string
	Offset int
	Limit  int
}
