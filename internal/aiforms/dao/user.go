package dao

import (
	"strings"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dto"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// User администратор форм
type User struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Email     string `json:"email" gorm:"uniqueIndex"`
	Password  string `json:"-"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	IsSuperuser bool       `json:"is_superuser"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	LastActive  *time.Time `json:"last_active" extensions:"x-nullable"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

func (u *User) ToLightDTO() *dto.UserLight {
	if u == nil {
		return nil
	}
	return &dto.UserLight{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// CreateUser создает активного пользователя с указанным паролем
func CreateUser(db *gorm.DB, email, pass, firstName, lastName string) (*User, error) {
	user := User{
		ID:        GenUUID(),
		Email:     email,
		Password:  GenPasswordHash(pass),
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
