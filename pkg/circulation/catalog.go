package circulation

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library-circulation/pkg/models"
)

// Catalog reads and writes book copies. It does no cross-entity validation;
// deciding whether a status change is legal is the Coordinator's job.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) GetCopy(copyUid string) (*models.BookCopy, error) {
	return c.getCopy(c.db, copyUid)
}

// FindAvailable returns the available copy of the given ISBN with the lowest
// id, or nil when every copy is out.
func (c *Catalog) FindAvailable(isbn string) (*models.BookCopy, error) {
	return c.findAvailable(c.db, isbn)
}

func (c *Catalog) SetStatus(copyUid string, status models.CopyStatus) error {
	result := c.db.Model(&models.BookCopy{}).
		Where("copy_uid = ?", copyUid).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDetails edits a copy's shelf metadata. Empty fields keep their
// current value. Status is never written here, whatever the caller read
// before: it belongs to the Coordinator.
func (c *Catalog) UpdateDetails(copyUid, author, title, category, shelfLoc string) (*models.BookCopy, error) {
	updates := map[string]interface{}{}
	if author != "" {
		updates["author"] = author
	}
	if title != "" {
		updates["title"] = title
	}
	if category != "" {
		updates["category"] = category
	}
	if shelfLoc != "" {
		updates["shelf_loc"] = shelfLoc
	}
	if len(updates) > 0 {
		result := c.db.Model(&models.BookCopy{}).
			Where("copy_uid = ?", copyUid).
			Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return c.GetCopy(copyUid)
}

// List returns all copies ordered by id.
func (c *Catalog) List() ([]models.BookCopy, error) {
	var copies []models.BookCopy
	if err := c.db.Order("id").Find(&copies).Error; err != nil {
		return nil, err
	}
	return copies, nil
}

func (c *Catalog) getCopy(db *gorm.DB, copyUid string) (*models.BookCopy, error) {
	var copy models.BookCopy
	if err := db.Where("copy_uid = ?", copyUid).First(&copy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &copy, nil
}

func (c *Catalog) findAvailable(db *gorm.DB, isbn string) (*models.BookCopy, error) {
	var copy models.BookCopy
	err := db.Where("isbn = ? AND status = ?", isbn, models.StatusAvailable).
		Order("id").
		First(&copy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &copy, nil
}

// forUpdate adds a row lock on engines that support it. The sqlite driver
// used in tests serializes writers on its own and rejects FOR UPDATE.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
