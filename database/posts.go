package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"social/models"
)

// InsertPost stores p and returns the generated id.
func (s *MongoStore) InsertPost(ctx context.Context, p *models.Post) (string, error) {
	doc := postToDocument(p)
	doc.ID = primitive.NewObjectID()

	err := s.exec(ctx, "insert_post", func(ctx context.Context) error {
		_, err := s.posts.InsertOne(ctx, doc)
		return err
	})
	if err != nil {
		return "", err
	}
	return doc.ID.Hex(), nil
}

// FindPost loads a post by id.
func (s *MongoStore) FindPost(ctx context.Context, id string) (*models.Post, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc postDocument
	err = s.exec(ctx, "find_post", func(ctx context.Context) error {
		err := s.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.NotFound("Post", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

// UpdatePost sets the provided fields and stamps updated_at. It returns the
// number of matched posts.
func (s *MongoStore) UpdatePost(ctx context.Context, id string, upd models.PostUpdate, now time.Time) (int64, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return 0, err
	}

	set := bson.M{"updated_at": now}
	if upd.Content != nil {
		set["content"] = *upd.Content
	}
	if upd.Tags != nil {
		set["tags"] = nonNilStrings(*upd.Tags)
	}
	if upd.PhotoLinks != nil {
		set["photo_links"] = nonNilStrings(*upd.PhotoLinks)
	}

	var matched int64
	err = s.exec(ctx, "update_post", func(ctx context.Context) error {
		res, err := s.posts.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
		if err != nil {
			return err
		}
		matched = res.MatchedCount
		return nil
	})
	return matched, err
}

// DeletePost removes a post and returns the number of deleted documents.
func (s *MongoStore) DeletePost(ctx context.Context, id string) (int64, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return 0, err
	}

	var deleted int64
	err = s.exec(ctx, "delete_post", func(ctx context.Context) error {
		res, err := s.posts.DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	return deleted, err
}

// QueryPosts returns the posts matching q, most recently updated first.
func (s *MongoStore) QueryPosts(ctx context.Context, q models.PostQuery) ([]models.Post, error) {
	if q.Authors != nil && len(q.Authors) == 0 {
		return []models.Post{}, nil
	}

	filter := bson.M{"updated_at": bson.M{"$lte": q.Before}}
	if q.Tag != "" {
		filter["tags"] = q.Tag
	}
	if q.Authors != nil {
		filter["author_user_id"] = bson.M{"$in": q.Authors}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(q.Skip))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	posts := []models.Post{}
	err := s.exec(ctx, "query_posts", func(ctx context.Context) error {
		cursor, err := s.posts.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var doc postDocument
			if err := cursor.Decode(&doc); err != nil {
				return err
			}
			posts = append(posts, *doc.toModel())
		}
		return cursor.Err()
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// AddLike records userID in the like set. The membership guard in the filter
// keeps likes_count equal to the set cardinality.
func (s *MongoStore) AddLike(ctx context.Context, postID string, userID int64, now time.Time) (models.Outcome, error) {
	return s.guardedPostUpdate(ctx, "add_like", postID,
		bson.M{"users_who_gave_like": bson.M{"$ne": userID}},
		bson.M{
			"$push": bson.M{"users_who_gave_like": userID},
			"$inc":  bson.M{"likes_count": 1},
			"$set":  bson.M{"updated_at": now},
		})
}

// RemoveLike drops userID from the like set.
func (s *MongoStore) RemoveLike(ctx context.Context, postID string, userID int64, now time.Time) (models.Outcome, error) {
	return s.guardedPostUpdate(ctx, "remove_like", postID,
		bson.M{"users_who_gave_like": userID},
		bson.M{
			"$pull": bson.M{"users_who_gave_like": userID},
			"$inc":  bson.M{"likes_count": -1},
			"$set":  bson.M{"updated_at": now},
		})
}

// AppendComment adds c at the end of the comment list.
func (s *MongoStore) AppendComment(ctx context.Context, postID string, c models.Comment, now time.Time) error {
	outcome, err := s.guardedPostUpdate(ctx, "append_comment", postID,
		bson.M{},
		bson.M{
			"$push": bson.M{"comments": commentToDocument(c)},
			"$inc":  bson.M{"comments_count": 1},
			"$set":  bson.M{"updated_at": now},
		})
	if err != nil {
		return err
	}
	if outcome == models.NoOp {
		// An empty guard always matches an existing post.
		return models.NotFound("Post", postID)
	}
	return nil
}

// RemoveComment deletes the comment with commentID. The counter is only
// decremented when the comment was present.
func (s *MongoStore) RemoveComment(ctx context.Context, postID, commentID string, now time.Time) (models.Outcome, error) {
	return s.guardedPostUpdate(ctx, "remove_comment", postID,
		bson.M{"comments.id": commentID},
		bson.M{
			"$pull": bson.M{"comments": bson.M{"id": commentID}},
			"$inc":  bson.M{"comments_count": -1},
			"$set":  bson.M{"updated_at": now},
		})
}

// guardedPostUpdate applies update to the post when guard holds. When nothing
// matched, a second lookup tells a missing post (NotFound) apart from a post
// already in the desired state (NoOp).
func (s *MongoStore) guardedPostUpdate(ctx context.Context, op, postID string, guard, update bson.M) (models.Outcome, error) {
	oid, err := parseObjectID(postID)
	if err != nil {
		return models.NoOp, err
	}

	filter := bson.M{"_id": oid}
	for k, v := range guard {
		filter[k] = v
	}

	outcome := models.Applied
	err = s.exec(ctx, op, func(ctx context.Context) error {
		res, err := s.posts.UpdateOne(ctx, filter, update)
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			return nil
		}

		n, err := s.posts.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if n == 0 {
			return models.NotFound("Post", postID)
		}
		outcome = models.NoOp
		return nil
	})
	if err != nil {
		return models.NoOp, err
	}
	return outcome, nil
}
