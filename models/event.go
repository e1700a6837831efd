package models

// Event types pushed to websocket clients.
const (
	EventPostCreated   = "post_created"
	EventPostLiked     = "post_liked"
	EventPostCommented = "post_commented"
	EventNewFollower   = "new_follower"
)

// Event is a realtime notification.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
