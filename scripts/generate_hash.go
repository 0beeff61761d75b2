//go:build ignore

// generate_hash.go — утилита для генерации Argon2id хеша админ-токена.
// Запуск: go run scripts/generate_hash.go ваш_токен
//
// Результат вставьте в .env как ADMIN_TOKEN_HASH.
package main

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/admin"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Использование: go run scripts/generate_hash.go <токен>")
		os.Exit(1)
	}

	// Случайная соль (16 байт)
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		fmt.Printf("Ошибка генерации соли: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Хеш токена (вставьте в .env как ADMIN_TOKEN_HASH):")
	fmt.Println(admin.HashToken(os.Args[1], salt))
}
