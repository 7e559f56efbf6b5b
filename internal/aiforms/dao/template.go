package dao

import (
	"html/template"

	"gorm.io/gorm"
)

// Template шаблон письма, хранится в БД и заполняется из встроенных файлов при старте
type Template struct {
	Id             string             `json:"id" gorm:"primaryKey"`
	Name           string             `json:"name" gorm:"uniqueIndex"`
	Template       string             `json:"template"`
	ParsedTemplate *template.Template `gorm:"-" extensions:"x-nullable"`
}

func (Template) TableName() string { return "templates" }

func (temp *Template) AfterFind(tx *gorm.DB) error {
	t, err := template.New(temp.Name).Parse(temp.Template)
	if err != nil {
		return err
	}
	temp.ParsedTemplate = t
	return nil
}
