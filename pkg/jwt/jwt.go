// Package jwt предоставляет валидацию JWT токенов на основе RS256.
// Токены выдаёт сервис аутентификации платформы; здесь используется
// только публичный ключ для верификации подписи.
package jwt

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Роли пользователей платформы, попадающие в claims.
const (
	RoleFranchisee = "franchisee" // Франчайзи в процессе onboarding
	RoleAdmin      = "admin"      // Администратор платформы
	RoleSupport    = "support"    // Поддержка (доступ на чтение)
)

// Claims содержит данные JWT токена.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`        // ID пользователя
	Role   string `json:"role,omitempty"` // Роль пользователя
}

// IsElevated возвращает true для ролей с расширенным доступом
// (просмотр чужих транзакций, управление настройками).
func (c *Claims) IsElevated() bool {
	return c.Role == RoleAdmin || c.Role == RoleSupport
}

// Manager валидирует JWT токены публичным ключом (RS256).
type Manager struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// Config содержит параметры для создания Manager.
type Config struct {
	PublicKeyPath string // Путь к публичному ключу (PEM)
	Issuer        string // Ожидаемый издатель токена
}

// NewManager создаёт новый менеджер валидации JWT токенов.
func NewManager(cfg Config) (*Manager, error) {
	publicKey, err := LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки публичного ключа: %w", err)
	}

	return &Manager{
		publicKey: publicKey,
		issuer:    cfg.Issuer,
	}, nil
}

// NewManagerWithKey создаёт менеджер с уже загруженным ключом (для тестов).
func NewManagerWithKey(publicKey *rsa.PublicKey, issuer string) *Manager {
	return &Manager{publicKey: publicKey, issuer: issuer}
}

// ValidateToken проверяет подпись, срок действия и издателя токена.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Принимаем только RS256 — защита от подмены алгоритма
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	}, jwt.WithIssuer(m.issuer))

	if err != nil {
		return nil, fmt.Errorf("ошибка валидации токена: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("невалидные claims токена")
	}

	return claims, nil
}

// LoadPublicKey загружает RSA публичный ключ из PEM файла.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла ключа: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("некорректный PEM файл: %s", path)
	}

	// Сначала пробуем PKIX (стандартный формат), затем PKCS1
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("ключ не является RSA ключом")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга публичного ключа: %w", err)
	}
	return rsaKey, nil
}
