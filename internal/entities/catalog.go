package entities

import "time"

// Column bounds shared by validation and the schema.
const (
	AuthorNameMaxLen   = 255
	CategoryNameMaxLen = 100
	BookTitleMaxLen    = 512
	UsernameMaxLen     = 100
	EmailMaxLen        = 255
)

type Author struct {
	ID   int64   `gorm:"primaryKey" json:"id"`
	Name string  `gorm:"uniqueIndex;size:255;not null" json:"name"`
	Bio  *string `gorm:"type:text" json:"bio,omitempty"`
}

type Category struct {
	ID   int64  `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;size:100;not null" json:"name"`
}

type Book struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"size:512;not null" json:"title"`
	Description   *string   `gorm:"type:text" json:"description,omitempty"`
	Price         float64   `gorm:"type:numeric(10,2);not null;check:price >= 0" json:"price"`
	PublishedDate time.Time `gorm:"type:date;not null" json:"published_date"`
	AuthorID      int64     `gorm:"index;not null" json:"author_id"`
	Author        *Author   `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`

	// AuthorName is filled by reads that join authors; it is never written.
	AuthorName string     `gorm:"->;-:migration" json:"author_name"`
	Categories []Category `gorm:"many2many:book_categories;constraint:OnDelete:CASCADE" json:"categories"`
}

// BookCategory is the join row tagging a book with a category.
type BookCategory struct {
	BookID     int64 `gorm:"primaryKey;autoIncrement:false" json:"book_id"`
	CategoryID int64 `gorm:"primaryKey;autoIncrement:false;index" json:"category_id"`
}

func (BookCategory) TableName() string {
	return "book_categories"
}

type User struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
}
