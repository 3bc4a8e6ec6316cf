// Package member содержит доменную модель участника команды Planboard.
//
// Участник (Member) принадлежит внешнему справочнику: ядро никогда его не
// изменяет, а только читает неизменяемые снапшоты.
//
// # Справочник
//
// Directory - неизменяемый снапшот ростера с индексами по ID и по имени:
//
//	dir := member.NewDirectory([]member.Member{
//	    {ID: "m1", Name: "Alice", Email: "alice@example.com"},
//	    {ID: "m2", Name: "Bob", Email: "bob@example.com"},
//	})
//	alice, ok := dir.ByID("m1")
//
// ID участника - стабильный ключ, имя - изменяемое. Поэтому все отображаемые
// имена выводятся из текущего снапшота, а не из имён, сохранённых в задачах.
//
// # Источник
//
// Source - контракт для получения ростера (PostgreSQL, Redis-кеш и т.д.).
// Реализации находятся в infrastructure слое.
package member
