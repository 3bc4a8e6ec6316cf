package ranking

import (
	"cmp"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/planboard/planboard-core/internal/domain/project"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

type options struct {
	lang language.Tag
}

// Option настраивает сравнение.
type Option func(*options)

// WithLanguage задаёт язык для сравнения имён (по умолчанию language.Und).
func WithLanguage(tag language.Tag) Option {
	return func(o *options) {
		o.lang = tag
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPARATOR
// ══════════════════════════════════════════════════════════════════════════════

// Comparator реализует четырёхуровневое сравнение проектов.
// Collator не потокобезопасен, поэтому Comparator нельзя делить между
// горутинами; Sort создаёт собственный на каждый вызов.
type Comparator struct {
	progress map[string]project.Progress
	mode     Mode
	collator *collate.Collator
}

// NewComparator создаёт компаратор для режима mode.
// Неизвестный режим заменяется на DefaultMode.
func NewComparator(progress map[string]project.Progress, mode Mode, opts ...Option) *Comparator {
	o := options{lang: language.Und}
	for _, opt := range opts {
		opt(&o)
	}
	if !mode.Valid() {
		mode = DefaultMode
	}
	return &Comparator{
		progress: progress,
		mode:     mode,
		collator: collate.New(o.lang),
	}
}

// Compare возвращает -1, 0 или 1.
func (c *Comparator) Compare(a, b project.Project) int {
	pa, pb := c.progressOf(a.ID), c.progressOf(b.ID)

	// 1. Выполненные проекты всегда после невыполненных.
	if ca, cb := pa.IsCompleted(), pb.IsCompleted(); ca != cb {
		if ca {
			return 1
		}
		return -1
	}

	// 2. Выбранный режим.
	var r int
	switch c.mode {
	case ModeDueDateAsc:
		r = compareDueDates(a, b, false)
	case ModeDueDateDesc:
		r = compareDueDates(a, b, true)
	case ModeProgressDesc:
		r = cmp.Compare(pb.Percentage, pa.Percentage)
	case ModeProgressAsc:
		r = cmp.Compare(pa.Percentage, pb.Percentage)
	}
	if r != 0 {
		return r
	}

	// 3. Ближайший срок, даже для режимов по прогрессу.
	if r = compareDueDates(a, b, false); r != 0 {
		return r
	}

	// 4. Имя с учётом локали.
	if r = c.collator.CompareString(a.Name, b.Name); r != 0 {
		return r
	}
	return strings.Compare(a.ID, b.ID)
}

// progressOf возвращает прогресс проекта; отсутствующий = 0.
func (c *Comparator) progressOf(id string) project.Progress {
	if p, ok := c.progress[id]; ok {
		return p
	}
	return project.Progress{ProjectID: id}
}

// compareDueDates сравнивает сроки. Проект без корректной даты всегда
// идёт после проекта с датой, независимо от направления.
func compareDueDates(a, b project.Project, descending bool) int {
	da, okA := a.DueDate()
	db, okB := b.DueDate()

	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}

	r := da.Compare(db)
	if descending {
		return -r
	}
	return r
}

// ══════════════════════════════════════════════════════════════════════════════
// SORT
// ══════════════════════════════════════════════════════════════════════════════

// Sort возвращает новый срез, упорядоченный за один проход стабильной
// сортировки. Входной срез не изменяется.
func Sort(projects []project.Project, progress map[string]project.Progress, mode Mode, opts ...Option) []project.Project {
	result := make([]project.Project, len(projects))
	copy(result, projects)

	c := NewComparator(progress, mode, opts...)
	sort.SliceStable(result, func(i, j int) bool {
		return c.Compare(result[i], result[j]) < 0
	})
	return result
}

// Ranked - проект с позицией и прогрессом для отображения.
type Ranked struct {
	// Position начинается с 1.
	Position int
	Project  project.Project
	Progress project.Progress
}

// Rank сортирует проекты и присваивает позиции.
func Rank(projects []project.Project, progress map[string]project.Progress, mode Mode, opts ...Option) []Ranked {
	sorted := Sort(projects, progress, mode, opts...)

	result := make([]Ranked, len(sorted))
	for i, p := range sorted {
		pr, ok := progress[p.ID]
		if !ok {
			pr = project.Progress{ProjectID: p.ID}
		}
		result[i] = Ranked{
			Position: i + 1,
			Project:  p,
			Progress: pr,
		}
	}
	return result
}
