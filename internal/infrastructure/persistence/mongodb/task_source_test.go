package mongodb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/planboard/planboard-core/internal/domain/project"
)

func mustRaw(t *testing.T, doc bson.D) bson.Raw {
	t.Helper()
	data, err := bson.Marshal(doc)
	require.NoError(t, err)
	return bson.Raw(data)
}

func TestDecodeTask(t *testing.T) {
	id := primitive.NewObjectID()
	task := decodeTask(mustRaw(t, bson.D{
		{Key: "_id", Value: id},
		{Key: "project_id", Value: "p1"},
		{Key: "title", Value: "Design"},
		{Key: "status", Value: "completed"},
		{Key: "assignees", Value: bson.A{"m1"}},
	}))

	assert.Equal(t, id.Hex(), task.ID)
	assert.True(t, task.IsCompleted())
	assert.Equal(t, project.ByIDs{IDs: []string{"m1"}}, task.Assignment())
}

func TestDecodeTask_LenientShapes(t *testing.T) {
	tests := []struct {
		name      string
		doc       bson.D
		assignees []string
		assignee  string
	}{
		{
			name: "assignees as string",
			doc:  bson.D{{Key: "assignees", Value: "m1"}},
		},
		{
			name:      "mixed array items",
			doc:       bson.D{{Key: "assignees", Value: bson.A{"m1", 7, " ", nil, " m2 "}}},
			assignees: []string{"m1", "m2"},
		},
		{
			name: "assignees as document",
			doc:  bson.D{{Key: "assignees", Value: bson.D{{Key: "id", Value: "m1"}}}},
		},
		{
			name:     "assignee as array",
			doc:      bson.D{{Key: "assignee", Value: bson.A{"Alice", "Bob"}}},
			assignee: "Alice, Bob",
		},
		{
			name: "assignee as number",
			doc:  bson.D{{Key: "assignee", Value: 42}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := append(bson.D{{Key: "_id", Value: "t-1"}, {Key: "status", Value: 3}}, tt.doc...)
			task := decodeTask(mustRaw(t, doc))

			assert.Equal(t, "t-1", task.ID)
			assert.Equal(t, project.Status(""), task.Status)
			if tt.assignees == nil {
				assert.Empty(t, task.AssignedMembers)
			} else {
				assert.Equal(t, tt.assignees, task.AssignedMembers)
			}
			assert.Equal(t, tt.assignee, task.Assignee)
		})
	}
}

func TestTaskSource_TasksByProject(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes documents", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
				bson.D{
					{Key: "_id", Value: primitive.NewObjectID()},
					{Key: "project_id", Value: "p1"},
					{Key: "title", Value: "Design"},
					{Key: "status", Value: "completed"},
					{Key: "assignees", Value: bson.A{"m1", "m2"}},
				},
				bson.D{
					{Key: "_id", Value: primitive.NewObjectID()},
					{Key: "project_id", Value: "p1"},
					{Key: "title", Value: "Build"},
					{Key: "status", Value: "Completed"},
					{Key: "assignee", Value: "Alice"},
				},
			),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)

		tasks, err := NewTaskSource(mt.Coll).TasksByProject(context.Background(), "p1")
		require.NoError(mt, err)
		require.Len(mt, tasks, 2)

		progress := project.CountProgress("p1", tasks)
		assert.Equal(mt, 2, progress.TotalTasks)
		assert.Equal(mt, 1, progress.CompletedTasks)
		assert.Equal(mt, project.ByLegacyString{Names: "Alice"}, tasks[1].Assignment())
	})

	mt.Run("malformed documents still count", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
				bson.D{
					{Key: "_id", Value: primitive.NewObjectID()},
					{Key: "project_id", Value: "p1"},
					{Key: "status", Value: "todo"},
					{Key: "assignees", Value: "m1"},
				},
				bson.D{
					{Key: "_id", Value: "legacy-2"},
					{Key: "project_id", Value: "p1"},
					{Key: "status", Value: "completed"},
					{Key: "assignees", Value: bson.A{"m1", 7}},
				},
				bson.D{
					{Key: "_id", Value: primitive.NewObjectID()},
					{Key: "project_id", Value: "p1"},
					{Key: "status", Value: bson.A{"completed"}},
					{Key: "assignee", Value: 12},
				},
			),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)

		tasks, err := NewTaskSource(mt.Coll).TasksByProject(context.Background(), "p1")
		require.NoError(mt, err)
		require.Len(mt, tasks, 3)

		progress := project.CountProgress("p1", tasks)
		assert.Equal(mt, 3, progress.TotalTasks)
		assert.Equal(mt, 1, progress.CompletedTasks)
		assert.Empty(mt, tasks[0].AssignedMembers)
		assert.Equal(mt, "legacy-2", tasks[1].ID)
		assert.Equal(mt, []string{"m1"}, tasks[1].AssignedMembers)
	})

	mt.Run("server error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Name:    "InterruptedAtShutdown",
			Message: "shutting down",
		}))

		_, err := NewTaskSource(mt.Coll).TasksByProject(context.Background(), "p1")
		assert.Error(mt, err)
	})
}
