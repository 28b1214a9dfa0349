package models

import "gorm.io/gorm"

// MenuItem is a nutrition snapshot for a single food parsed from FatSecret.
type MenuItem struct {
	gorm.Model
	RestaurantID uint    `gorm:"index;not null" json:"-"`
	FoodName     string  `gorm:"type:varchar(255)" json:"food_name"`
	Calories     float64 `gorm:"type:double precision" json:"calories"`     // kcal
	Protein      float64 `gorm:"type:double precision" json:"protein"`      // g
	Carbohydrate float64 `gorm:"type:double precision" json:"carbohydrate"` // g
}
