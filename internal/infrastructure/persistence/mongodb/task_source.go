// Package mongodb implements a document-store backend for project tasks.
// Boards that keep their task collections in MongoDB read progress from here
// instead of PostgreSQL.
package mongodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/planboard/planboard-core/internal/domain/project"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds MongoDB connection configuration.
type Config struct {
	// URI is the connection string (mongodb://host:27017).
	URI string

	// Database is the database name.
	Database string

	// Collection holds task documents.
	Collection string

	// ConnectTimeout bounds Connect and the initial ping.
	ConnectTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "planboard",
		Collection:     "tasks",
		ConnectTimeout: 10 * time.Second,
	}
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}
	return client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK DOCUMENT
// ══════════════════════════════════════════════════════════════════════════════

// Task documents are written by several clients and their shape drifts:
// assignees may be a string, ids may be strings instead of ObjectIDs.
// decodeTask reads a raw document field by field and treats any value of an
// unexpected type as missing, so one odd document never fails a project.

func decodeTask(raw bson.Raw) project.Task {
	return project.Task{
		ID:              rawID(raw.Lookup("_id")),
		ProjectID:       rawString(raw.Lookup("project_id")),
		Title:           rawString(raw.Lookup("title")),
		Status:          project.Status(rawString(raw.Lookup("status"))),
		AssignedMembers: rawStringList(raw.Lookup("assignees")),
		Assignee:        rawNames(raw.Lookup("assignee")),
	}
}

func rawID(v bson.RawValue) string {
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	return rawString(v)
}

func rawString(v bson.RawValue) string {
	s, _ := v.StringValueOK()
	return s
}

// rawStringList returns the non-empty string items of an array. Anything
// other than an array yields nil.
func rawStringList(v bson.RawValue) []string {
	arr, ok := v.ArrayOK()
	if !ok {
		return nil
	}
	values, err := arr.Values()
	if err != nil {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, item := range values {
		if s := strings.TrimSpace(rawString(item)); s != "" {
			result = append(result, s)
		}
	}
	return result
}

// rawNames accepts a string or an array of strings joined with ", ".
func rawNames(v bson.RawValue) string {
	if s, ok := v.StringValueOK(); ok {
		return s
	}
	return strings.Join(rawStringList(v), ", ")
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// TaskSource implements project.TaskSource on a MongoDB collection.
type TaskSource struct {
	coll *mongo.Collection
}

// NewTaskSource creates a TaskSource reading from coll.
func NewTaskSource(coll *mongo.Collection) *TaskSource {
	return &TaskSource{coll: coll}
}

// TasksByProject returns all tasks of a project.
func (s *TaskSource) TasksByProject(ctx context.Context, projectID string) ([]project.Task, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{
			{Key: "project_id", Value: 1},
			{Key: "title", Value: 1},
			{Key: "status", Value: 1},
			{Key: "assignees", Value: 1},
			{Key: "assignee", Value: 1},
		})

	cursor, err := s.coll.Find(ctx, bson.D{{Key: "project_id", Value: projectID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: find tasks of %s: %w", projectID, err)
	}
	defer cursor.Close(ctx)

	tasks := []project.Task{}
	for cursor.Next(ctx) {
		tasks = append(tasks, decodeTask(cursor.Current))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongodb: read tasks of %s: %w", projectID, err)
	}
	return tasks, nil
}

// EnsureIndexes creates the project_id index used by TasksByProject.
func (s *TaskSource) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "project_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongodb: create project_id index: %w", err)
	}
	return nil
}

var _ project.TaskSource = (*TaskSource)(nil)
