package specification

import (
	"fmt"

	"gorm.io/gorm"
)

type ByID struct {
	ID string
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

// ByStatus matches every row when Status is empty.
type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	if s.Status == "" {
		return db
	}
	return db.Where("status = ?", s.Status)
}

type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s", s.Field, direction))
}

type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(s.Limit).Offset(s.Offset)
}

// Apply chains specs onto db in order.
func Apply(db *gorm.DB, specs ...Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}
