// Пакет kv — локальное хранилище «ключ → значение» с одним пространством имён.
// Значения — произвольные байты (обычно JSON-коллекция).
// Update выполняет read-modify-write атомарно относительно других Update
// того же хранилища.
package kv

import (
	"context"
	"errors"
	"regexp"
)

// ErrNotFound — ключ отсутствует.
var ErrNotFound = errors.New("ключ не найден")

// ErrInvalidKey — ключ содержит недопустимые символы.
var ErrInvalidKey = errors.New("недопустимый ключ")

// UpdateFunc получает текущее значение (nil, если ключа нет) и возвращает новое.
// Ошибка из UpdateFunc отменяет запись и возвращается вызывающему.
type UpdateFunc func(current []byte) ([]byte, error)

// Store — абстракция локального хранилища.
type Store interface {
	// Get возвращает значение ключа или ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set записывает значение целиком.
	Set(ctx context.Context, key string, value []byte) error
	// Update атомарно заменяет значение результатом fn.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// Ping проверяет доступность хранилища на запись.
	Ping(ctx context.Context) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,128}$`)

// ValidateKey проверяет ключ: латиница, цифры, '_' и '-', до 128 символов.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return ErrInvalidKey
	}
	return nil
}
