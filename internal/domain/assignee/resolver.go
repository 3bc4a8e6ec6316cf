// Package assignee resolves raw assignment data into display names.
//
// Member identity is the durable key and the display name is mutable, so every
// name is re-derived from the current directory snapshot instead of trusting a
// name cached on the task or project. Members that were removed or renamed away
// are dropped silently. All functions are pure and safe for concurrent use.
package assignee

import (
	"strings"

	"github.com/planboard/planboard-core/internal/domain/member"
	"github.com/planboard/planboard-core/internal/domain/project"
)

// Unassigned is the placeholder returned when nothing resolves.
const Unassigned = "-"

// Separator joins resolved names for display.
const Separator = ", "

// ResolveAssigneeNames returns the current display names of a task's assignees.
// Id-based assignment wins over the legacy string even when none of the ids
// resolve.
func ResolveAssigneeNames(task project.Task, dir *member.Directory) []string {
	var names []string
	switch a := task.Assignment().(type) {
	case project.ByIDs:
		names = resolveIDs(a.IDs, dir)
	case project.ByLegacyString:
		names = resolveLegacy(a.Fragments(), dir)
	case project.Empty:
	}
	return orUnassigned(names)
}

// ResolveResponsibleNames returns the current display names of a project's
// responsibles. Each structured entry resolves by member id when it has one and
// by exact current name otherwise; the legacy free-text field is consulted only
// when the structured list is empty.
func ResolveResponsibleNames(p project.Project, dir *member.Directory) []string {
	if len(p.Responsibles) == 0 {
		return orUnassigned(resolveLegacy(project.SplitLegacyNames(p.Responsible), dir))
	}

	r := newCollector(len(p.Responsibles))
	for _, entry := range p.Responsibles {
		if id := strings.TrimSpace(entry.MemberID); id != "" {
			if m, ok := dir.ByID(id); ok {
				r.add(m)
			}
			continue
		}
		if m, ok := dir.ByName(strings.TrimSpace(entry.MemberName)); ok {
			r.add(m)
		}
	}
	return orUnassigned(r.names)
}

// ResolveMemberNames resolves the legacy comma-joined team list of a project.
func ResolveMemberNames(p project.Project, dir *member.Directory) []string {
	return orUnassigned(resolveLegacy(project.SplitLegacyNames(p.Members), dir))
}

// Join formats resolved names for a single display cell.
func Join(names []string) string {
	if len(names) == 0 {
		return Unassigned
	}
	return strings.Join(names, Separator)
}

// IsUnassigned reports whether names is the placeholder result.
func IsUnassigned(names []string) bool {
	return len(names) == 0 || (len(names) == 1 && names[0] == Unassigned)
}

func resolveIDs(ids []string, dir *member.Directory) []string {
	r := newCollector(len(ids))
	for _, id := range ids {
		if m, ok := dir.ByID(id); ok {
			r.add(m)
		}
	}
	return r.names
}

func resolveLegacy(fragments []string, dir *member.Directory) []string {
	r := newCollector(len(fragments))
	for _, name := range fragments {
		if m, ok := dir.ByName(name); ok {
			r.add(m)
		}
	}
	return r.names
}

func orUnassigned(names []string) []string {
	if len(names) == 0 {
		return []string{Unassigned}
	}
	return names
}

// collector keeps emission order and emits each member once.
type collector struct {
	seen  map[string]struct{}
	names []string
}

func newCollector(capacity int) *collector {
	return &collector{
		seen:  make(map[string]struct{}, capacity),
		names: make([]string, 0, capacity),
	}
}

func (c *collector) add(m member.Member) {
	if _, dup := c.seen[m.ID]; dup {
		return
	}
	c.seen[m.ID] = struct{}{}
	c.names = append(c.names, m.Name)
}
