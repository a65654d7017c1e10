package model

// 借阅人角色
const (
	RoleStudent   = "student"
	RoleProfessor = "professor"
)

// Person 借阅人表，对应 people
type Person struct {
	PersonID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"person_id"`
	Name     string `gorm:"type:varchar(200);not null;default:''"          json:"name"`
	Email    string `gorm:"type:varchar(200);not null;default:''"          json:"email"`
	Role     string `gorm:"type:varchar(20);not null"                      json:"role"` // student | professor
	BaseModel
}

// TableName 指定表名
func (Person) TableName() string { return "people" }

// Book 图书表，对应 books（仅借阅引擎关心的库存字段）
type Book struct {
	BookID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"book_id"`
	Title      string `gorm:"type:varchar(500);not null;default:''"          json:"title"`
	TotalStock int    `gorm:"not null;default:0"                             json:"total_stock"`
	BaseModel
}

// TableName 指定表名
func (Book) TableName() string { return "books" }
