package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/google/uuid"

	"library-circulation/pkg/database"
	"library-circulation/pkg/models"
)

type seedCopy struct {
	Author   string `json:"author"`
	Title    string `json:"title"`
	ISBN     string `json:"isbn"`
	Category string `json:"category"`
	ShelfLoc string `json:"shelfLoc"`
}

// seed loads a catalog file into the circulation database. Copies already on
// their shelf (same title and shelf location) are left alone, so the loader
// can be re-run safely.
func main() {
	path := "books.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}
	var copies []seedCopy
	if err := json.Unmarshal(data, &copies); err != nil {
		log.Fatalf("Failed to parse %s: %v", path, err)
	}

	db, err := database.Connect(database.LoadConfig())
	if err != nil {
		log.Fatalf("Database init failed: %v", err)
	}

	created := 0
	skipped := 0
	for _, entry := range copies {
		if entry.Title == "" || entry.ISBN == "" {
			log.Printf("Skipping entry with missing title or isbn: %+v", entry)
			skipped++
			continue
		}
		var existing models.BookCopy
		err := db.Where("title = ? AND shelf_loc = ?", entry.Title, entry.ShelfLoc).First(&existing).Error
		if err == nil {
			skipped++
			continue
		}
		copy := models.BookCopy{
			CopyUid:  uuid.New().String(),
			Author:   entry.Author,
			Title:    entry.Title,
			ISBN:     entry.ISBN,
			Category: entry.Category,
			ShelfLoc: entry.ShelfLoc,
			Status:   models.StatusAvailable,
		}
		if err := db.Create(&copy).Error; err != nil {
			log.Printf("Failed to create copy of %q: %v", entry.Title, err)
			continue
		}
		created++
	}

	log.Printf("Seed complete: %d copies created, %d skipped", created, skipped)
}
