package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"social/models"
)

// InsertSocialUser creates the graph document of an identity. Creating an
// existing id is a no-op.
func (s *MongoStore) InsertSocialUser(ctx context.Context, id int64) (models.Outcome, error) {
	doc := socialUserDocument{
		ID:        id,
		Followers: []int64{},
		Following: []int64{},
		Tags:      []string{},
	}

	outcome := models.Applied
	err := s.exec(ctx, "insert_social_user", func(ctx context.Context) error {
		_, err := s.users.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			outcome = models.NoOp
			return nil
		}
		return err
	})
	if err != nil {
		return models.NoOp, err
	}
	return outcome, nil
}

// FindSocialUser loads the graph document of an identity.
func (s *MongoStore) FindSocialUser(ctx context.Context, id int64) (*models.SocialUser, error) {
	var doc socialUserDocument
	err := s.exec(ctx, "find_social_user", func(ctx context.Context) error {
		err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.NotFound("User", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// AddFollowing adds target to the following set of userID.
func (s *MongoStore) AddFollowing(ctx context.Context, userID, target int64) (models.Outcome, error) {
	return s.updateEdge(ctx, "add_following", userID, "$addToSet", "following", target)
}

// RemoveFollowing removes target from the following set of userID.
func (s *MongoStore) RemoveFollowing(ctx context.Context, userID, target int64) (models.Outcome, error) {
	return s.updateEdge(ctx, "remove_following", userID, "$pull", "following", target)
}

// AddFollower adds follower to the followers set of userID.
func (s *MongoStore) AddFollower(ctx context.Context, userID, follower int64) (models.Outcome, error) {
	return s.updateEdge(ctx, "add_follower", userID, "$addToSet", "followers", follower)
}

// RemoveFollower removes follower from the followers set of userID.
func (s *MongoStore) RemoveFollower(ctx context.Context, userID, follower int64) (models.Outcome, error) {
	return s.updateEdge(ctx, "remove_follower", userID, "$pull", "followers", follower)
}

// AddTag subscribes userID to tag.
func (s *MongoStore) AddTag(ctx context.Context, userID int64, tag string) (models.Outcome, error) {
	return s.updateEdge(ctx, "add_tag", userID, "$addToSet", "tags", tag)
}

// RemoveTag unsubscribes userID from tag.
func (s *MongoStore) RemoveTag(ctx context.Context, userID int64, tag string) (models.Outcome, error) {
	return s.updateEdge(ctx, "remove_tag", userID, "$pull", "tags", tag)
}

// updateEdge applies a set operator to one array field of a social user.
// An unmatched user is NotFound, a matched but unmodified one is a NoOp.
func (s *MongoStore) updateEdge(ctx context.Context, op string, userID int64, operator, field string, value any) (models.Outcome, error) {
	outcome := models.Applied
	err := s.exec(ctx, op, func(ctx context.Context) error {
		res, err := s.users.UpdateOne(ctx,
			bson.M{"_id": userID},
			bson.M{operator: bson.M{field: value}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return models.NotFound("User", userID)
		}
		if res.ModifiedCount == 0 {
			outcome = models.NoOp
		}
		return nil
	})
	if err != nil {
		return models.NoOp, err
	}
	return outcome, nil
}
