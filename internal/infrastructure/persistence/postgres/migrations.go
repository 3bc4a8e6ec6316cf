package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE MEMBERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Member roster. Names may change; ids are stable.
CREATE TABLE IF NOT EXISTS members (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_members_active ON members(active) WHERE active;
`

const migration001Down = `
DROP TABLE IF EXISTS members;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE PROJECTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- end_date is kept as text: legacy rows carry unparseable values.
-- responsible and members are the legacy comma-separated name lists.
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    end_date TEXT NOT NULL DEFAULT '',
    responsibles JSONB NOT NULL DEFAULT '[]'::jsonb,
    responsible TEXT NOT NULL DEFAULT '',
    members TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration002Down = `
DROP TABLE IF EXISTS projects;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE TASKS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    title TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'todo',
    assigned_members TEXT[] NOT NULL DEFAULT '{}',
    assignee TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_project_status ON tasks(project_id, status);
`

const migration003Down = `
DROP TABLE IF EXISTS tasks;
`
