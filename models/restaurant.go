package models

import (
	"time"

	"gorm.io/gorm"
)

// Restaurant is one chain's stored menu, keyed by the name the client sent us.
type Restaurant struct {
	gorm.Model
	Name        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"restaurant"`
	LastUpdated time.Time  `gorm:"index" json:"lastUpdated"`
	Servings    []MenuItem `gorm:"constraint:OnDelete:CASCADE" json:"servings"`
}

// HasItem reports whether the menu already holds an item with exactly this name.
func (r *Restaurant) HasItem(name string) bool {
	for _, s := range r.Servings {
		if s.FoodName == name {
			return true
		}
	}
	return false
}
