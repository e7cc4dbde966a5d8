// Package identity выводит детерминированные идентификаторы клиентов
// для апстрим-панелей: один пользователь — один стабильный UUID на панель.
package identity

import (
	"errors"

	"github.com/google/uuid"
)

var ErrEmptyScope = errors.New("identity: empty scope")

// Derive строит UUID клиента из области панели и области пользователя.
// Двухступенчатая схема: из panelScope выводится namespace (name-based UUID
// от NameSpaceURL), затем итоговый идентификатор — name-based UUID от этого
// namespace и userScope. Функция чистая: одинаковые аргументы всегда дают
// одинаковый результат, разные панели — разные идентификаторы.
func Derive(panelScope, userScope string) (string, error) {
	if panelScope == "" || userScope == "" {
		return "", ErrEmptyScope
	}
	ns := uuid.NewSHA1(uuid.NameSpaceURL, []byte(panelScope))
	id := uuid.NewSHA1(ns, []byte(userScope))
	return id.String(), nil
}
