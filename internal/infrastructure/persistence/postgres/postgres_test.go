package postgres

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planboard/planboard-core/internal/domain/member"
	"github.com/planboard/planboard-core/internal/domain/project"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

var projectCols = []string{"id", "name", "end_date", "responsibles", "responsible", "members"}

func TestProjectRepository_ListProjects(t *testing.T) {
	mock := newMock(t)
	repo := NewProjectRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = ANY($1)")).
		WithArgs([]string{"p1", "p2"}).
		WillReturnRows(pgxmock.NewRows(projectCols).
			AddRow("p1", "Alpha", "2024-05-01", []byte(`[{"memberId":"m1","memberName":"Alice"}]`), "", "Bob, Carol").
			AddRow("p2", "Beta", "", []byte(`[]`), "Alice", ""))

	projects, err := repo.ListProjects(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, []project.Responsible{{MemberID: "m1", MemberName: "Alice"}}, projects[0].Responsibles)
	assert.Equal(t, "Bob, Carol", projects[0].Members)
	assert.Equal(t, "Alice", projects[1].Responsible)
	assert.Empty(t, projects[1].Responsibles)
}

func TestProjectRepository_ListAll(t *testing.T) {
	mock := newMock(t)
	repo := NewProjectRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM projects ORDER BY id")).
		WillReturnRows(pgxmock.NewRows(projectCols).AddRow("p1", "Alpha", "", []byte(nil), "", ""))

	projects, err := repo.ListProjects(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestProjectRepository_MalformedResponsibles(t *testing.T) {
	mock := newMock(t)
	repo := NewProjectRepository(mock)

	mock.ExpectQuery("FROM projects").
		WillReturnRows(pgxmock.NewRows(projectCols).
			AddRow("p1", "Alpha", "", []byte(`[{"memberId":7},{"memberId":"m1"},"oops",{"memberName":["x"]}]`), "", "").
			AddRow("p2", "Beta", "", []byte(`{`), "Alice", "").
			AddRow("p3", "Gamma", "", []byte(`{"memberId":"m2"}`), "", ""))

	projects, err := repo.ListProjects(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, []project.Responsible{{MemberID: "m1"}}, projects[0].Responsibles)
	assert.Empty(t, projects[1].Responsibles)
	assert.Equal(t, "Alice", projects[1].Responsible)
	assert.Empty(t, projects[2].Responsibles)
}

func TestProjectRepository_ListProjectIDs(t *testing.T) {
	mock := newMock(t)
	repo := NewProjectRepository(mock)

	mock.ExpectQuery("SELECT id FROM projects").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))

	ids, err := repo.ListProjectIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestProjectRepository_Save(t *testing.T) {
	mock := newMock(t)
	repo := NewProjectRepository(mock)

	mock.ExpectExec("INSERT INTO projects").
		WithArgs("p1", "Alpha", "2024-05-01", []byte(`[]`), "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), project.Project{ID: "p1", Name: "Alpha", EndDate: "2024-05-01"}))
	assert.ErrorIs(t, repo.Save(context.Background(), project.Project{}), project.ErrEmptyProjectID)
}

func TestTaskRepository_TasksByProject(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)

	cols := []string{"id", "project_id", "title", "status", "assigned_members", "assignee"}
	mock.ExpectQuery("FROM tasks").
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("t1", "p1", "Design", "completed", []string{"m1"}, "").
			AddRow("t2", "p1", "Build", "todo", []string{}, "Alice, Bob"))

	tasks, err := repo.TasksByProject(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.True(t, tasks[0].IsCompleted())
	assert.Equal(t, project.ByIDs{IDs: []string{"m1"}}, tasks[0].Assignment())
	assert.Equal(t, project.ByLegacyString{Names: "Alice, Bob"}, tasks[1].Assignment())

	progress := project.CountProgress("p1", tasks)
	assert.Equal(t, 50, progress.Percentage)
}

func TestTaskRepository_QueryError(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)

	boom := errors.New("connection reset")
	mock.ExpectQuery("FROM tasks").WithArgs("p1").WillReturnError(boom)

	_, err := repo.TasksByProject(context.Background(), "p1")
	assert.ErrorIs(t, err, boom)
}

func TestTaskRepository_Save(t *testing.T) {
	mock := newMock(t)
	repo := NewTaskRepository(mock)

	mock.ExpectExec("INSERT INTO tasks").
		WithArgs("t1", "p1", "Design", "todo", []string{}, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), project.Task{ID: "t1", ProjectID: "p1", Title: "Design", Status: project.StatusTodo}))
}

func TestMemberRepository(t *testing.T) {
	mock := newMock(t)
	repo := NewMemberRepository(mock)
	ctx := context.Background()

	mock.ExpectQuery("FROM members WHERE active").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email"}).
			AddRow("m1", "Alice", "alice@example.com").
			AddRow("m2", "Bob", ""))

	members, err := repo.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []member.Member{
		{ID: "m1", Name: "Alice", Email: "alice@example.com"},
		{ID: "m2", Name: "Bob"},
	}, members)

	mock.ExpectExec("INSERT INTO members").
		WithArgs("m3", "Carol", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Save(ctx, member.Member{ID: "m3", Name: "Carol"}))

	mock.ExpectExec("UPDATE members SET active = FALSE").
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.Deactivate(ctx, "ghost"), ErrNoRows)
}

func TestMigrator_AppliesPending(t *testing.T) {
	mock := newMock(t)
	m := NewMigrator(mock)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"version", "applied_at"}).AddRow(1, time.Now()))

	for _, mig := range GetMigrations()[1:] {
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + strings.TrimPrefix(mig.Name, "create_")).WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs(mig.Version, mig.Name).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()
	}

	applied, err := m.Migrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	mock := newMock(t)
	m := NewMigratorWithMigrations(mock, []Migration{{Version: 1, Name: "broken", UpSQL: "CREATE broken"}})

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT version, applied_at").
		WillReturnRows(pgxmock.NewRows([]string{"version", "applied_at"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE broken").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	applied, err := m.Migrate(context.Background())
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.Zero(t, applied)
}

func TestMigrator_Rollback(t *testing.T) {
	mock := newMock(t)
	m := NewMigrator(mock)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT version, applied_at").
		WillReturnRows(pgxmock.NewRows([]string{"version", "applied_at"}).
			AddRow(1, time.Now()).
			AddRow(2, time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS projects").WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec("DELETE FROM schema_migrations").WithArgs(2).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, m.Rollback(context.Background()))
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	assert.Contains(t, cfg.DSN(), "host=localhost port=5432 dbname=planboard")

	cfg.URL = "postgres://u:p@db:5432/planboard"
	assert.Equal(t, cfg.URL, cfg.DSN())

	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(10), pc.MaxConns)
}

var (
	_ project.Repository = (*ProjectRepository)(nil)
	_ project.TaskSource = (*TaskRepository)(nil)
	_ member.Source      = (*MemberRepository)(nil)
	_ Executor           = (*Connection)(nil)
)
