// DAO (Data Access Object) - модели БД сервиса форм и методы работы с ними.
//
// Основные возможности:
//   - Модели пользователей, форм, ответов, вложений, сессий оплаты и шаблонов писем.
//   - Транзакционная запись ответа вместе с сессией оплаты (Store).
//   - Постраничная выборка и генерация UUID, паролей и слагов.
package dao

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/config"
	"github.com/gofrs/uuid"
	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/pbkdf2"
	"gorm.io/gorm"
)

var Config *config.Config

const passwordIterations = 260000

func GenID() string {
	u2, _ := uuid.NewV4()
	return u2.String()
}

// GenUUID генерирует уникальный идентификатор в формате UUID.
func GenUUID() uuid.UUID {
	u2, _ := uuid.NewV4()
	return u2
}

// GenSlug генерирует короткий слаг формы из строчных букв и цифр
func GenSlug() string {
	return password.MustGenerate(6, 3, 0, true, true)
}

// GenPasswordHash хэширует пароль в формате pbkdf2_sha256$iterations$salt$hash
func GenPasswordHash(pass string) string {
	salt := password.MustGenerate(32, 0, 0, false, true)
	return fmt.Sprintf("pbkdf2_sha256$%d$%s$%s",
		passwordIterations,
		salt,
		base64.StdEncoding.EncodeToString(pbkdf2.Key([]byte(pass), []byte(salt), passwordIterations, 32, sha256.New)),
	)
}

// CheckPassword сверяет пароль с хэшем GenPasswordHash. Число итераций берется из хэша.
func CheckPassword(pass string, hash string) bool {
	ss := strings.Split(hash, "$")
	if len(ss) != 4 || ss[0] != "pbkdf2_sha256" {
		return false
	}
	iterations, err := strconv.Atoi(ss[1])
	if err != nil || iterations <= 0 {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(ss[3])
	if err != nil || len(expected) == 0 {
		return false
	}
	actual := pbkdf2.Key([]byte(pass), []byte(ss[2]), iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

type PaginationResponse struct {
	Count  int64 `json:"count"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
	Result any   `json:"result"`
}

func PaginationRequest(offset int, limit int, query *gorm.DB, target any) (res PaginationResponse, err error) {
	// Count query
	if err := query.Session(&gorm.Session{}).Model(target).Count(&res.Count).Error; err != nil {
		return res, err
	}

	// Data query
	if err := query.Offset(offset).Limit(limit).Find(target).Error; err != nil {
		return res, err
	}

	res.Result = target
	res.Limit = limit
	res.Offset = offset

	return res, nil
}

// Migrate создает и обновляет таблицы всех моделей
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Form{},
		&CheckoutSession{},
		&Submission{},
		&SubmissionAttachment{},
		&Template{},
	)
}
