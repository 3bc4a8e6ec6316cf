package member

import (
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Directory - неизменяемый снапшот ростера участников.
// После создания не модифицируется, поэтому безопасен для конкурентного чтения.
// Нулевой указатель ведёт себя как пустой справочник.
type Directory struct {
	members     []Member
	byID        map[string]int
	byName      map[string]int
	fingerprint string
}

// NewDirectory создаёт снапшот из списка участников.
// Участники без ID пропускаются; при повторе ID или имени побеждает первый
// в порядке ростера.
func NewDirectory(members []Member) *Directory {
	d := &Directory{
		members: make([]Member, 0, len(members)),
		byID:    make(map[string]int, len(members)),
		byName:  make(map[string]int, len(members)),
	}

	for _, m := range members {
		if m.Validate() != nil {
			continue
		}
		if _, exists := d.byID[m.ID]; exists {
			continue
		}
		idx := len(d.members)
		d.members = append(d.members, m)
		d.byID[m.ID] = idx
		if _, exists := d.byName[m.Name]; !exists && m.Name != "" {
			d.byName[m.Name] = idx
		}
	}

	d.fingerprint = fingerprintOf(d.members)
	return d
}

// Snapshot реализует SnapshotProvider: статический справочник отдаёт себя.
func (d *Directory) Snapshot() *Directory {
	if d == nil {
		return NewDirectory(nil)
	}
	return d
}

// ByID ищет участника по ID.
func (d *Directory) ByID(id string) (Member, bool) {
	if d == nil {
		return Member{}, false
	}
	idx, ok := d.byID[id]
	if !ok {
		return Member{}, false
	}
	return d.members[idx], true
}

// ByName ищет участника, чьё текущее имя точно совпадает с name.
func (d *Directory) ByName(name string) (Member, bool) {
	if d == nil || name == "" {
		return Member{}, false
	}
	idx, ok := d.byName[name]
	if !ok {
		return Member{}, false
	}
	return d.members[idx], true
}

// Members возвращает копию ростера в исходном порядке.
func (d *Directory) Members() []Member {
	if d == nil {
		return nil
	}
	result := make([]Member, len(d.members))
	copy(result, d.members)
	return result
}

// Len возвращает количество участников.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.members)
}

// Fingerprint возвращает хеш содержимого ростера (не зависит от порядка).
// Одинаковые ростеры дают одинаковый отпечаток.
func (d *Directory) Fingerprint() string {
	if d == nil {
		return fingerprintOf(nil)
	}
	return d.fingerprint
}

// SameAs возвращает true, если содержимое снапшотов совпадает.
func (d *Directory) SameAs(other *Directory) bool {
	return d.Fingerprint() == other.Fingerprint()
}

func fingerprintOf(members []Member) string {
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	// blake2b.New256 with a nil key never fails.
	h, _ := blake2b.New256(nil)
	for _, m := range sorted {
		h.Write([]byte(m.ID))
		h.Write([]byte{0})
		h.Write([]byte(m.Name))
		h.Write([]byte{0})
		h.Write([]byte(m.Email))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
