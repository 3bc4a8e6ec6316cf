package member

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// SOURCE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Source определяет контракт получения ростера (getMembers).
// Каждый вызов возвращает полный список участников на текущий момент.
type Source interface {
	// Members возвращает всех известных участников.
	Members(ctx context.Context) ([]Member, error)
}

// SnapshotProvider отдаёт последний загруженный снапшот справочника.
// Вызывающий код считает его авторитетным на время одного прохода.
type SnapshotProvider interface {
	// Snapshot никогда не возвращает nil.
	Snapshot() *Directory
}

// SnapshotCache определяет контракт кеширования снапшота ростера.
type SnapshotCache interface {
	// LoadMembers возвращает закешированный ростер.
	LoadMembers(ctx context.Context) ([]Member, error)

	// StoreMembers сохраняет ростер в кеш.
	StoreMembers(ctx context.Context, members []Member) error
}
