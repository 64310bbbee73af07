package types

// Calories is the nutrition breakdown shown on a product card. It is stored as
// four integer columns (calories_total, calories_fat, ...).
type Calories struct {
	Total   int `json:"total" gorm:"column:total;not null;default:0"`
	Fat     int `json:"fat" gorm:"column:fat;not null;default:0"`
	Protein int `json:"protein" gorm:"column:protein;not null;default:0"`
	Carbs   int `json:"carbs" gorm:"column:carbs;not null;default:0"`
}
