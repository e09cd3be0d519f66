package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"library-circulation/pkg/circulation"
	"library-circulation/pkg/database"
	"library-circulation/pkg/models"
)

var (
	db      *gorm.DB
	catalog *circulation.Catalog
	ledger  *circulation.LoanLedger
	queue   *circulation.ReservationQueue
	coord   *circulation.Coordinator
)

func main() {
	log.Println("Starting circulation service...")

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("http_port", "8080")

	var err error
	db, err = database.Connect(database.LoadConfig())
	if err != nil {
		log.Fatalf("Database init failed: %v", err)
	}

	catalog = circulation.NewCatalog(db)
	ledger = circulation.NewLoanLedger(db, nil)
	queue = circulation.NewReservationQueue(db, nil)
	coord = circulation.NewCoordinator(db, nil)

	seedTestData()

	server := gin.Default()

	server.GET("/api/v1/books", getBooks)
	server.GET("/api/v1/books/:copyUid", getBook)
	server.POST("/api/v1/books", createBook)
	server.PUT("/api/v1/books/:copyUid", updateBook)

	server.POST("/api/v1/loans", createLoan)
	server.POST("/api/v1/loans/:loanUid/return", returnLoan)
	server.GET("/api/v1/loans", getLoans)
	server.GET("/api/v1/loans/overdue", getOverdueLoans)
	server.GET("/api/v1/loans/due-soon", getDueSoonLoans)
	server.GET("/api/v1/loans/overdue/summary", getOverdueSummary)

	server.POST("/api/v1/reservations", createReservation)
	server.POST("/api/v1/reservations/:reservationUid/cancel", cancelReservation)
	server.POST("/api/v1/reservations/:reservationUid/fulfill", fulfillReservation)
	server.GET("/api/v1/reservations", getReservations)

	server.GET("/api/v1/reviews", getReviews)
	server.POST("/api/v1/reviews", createReview)

	server.GET("/api/v1/stats", getStats)
	server.GET("/manage/health", healthCheck)

	port := v.GetString("http_port")
	log.Printf("Circulation service starting on :%s", port)
	if err := server.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// identity pulls the caller's identity from the headers the gateway sets.
// Authentication itself happens upstream; this service trusts the headers.
func identity(c *gin.Context) (string, models.Role, bool) {
	username := c.GetHeader("X-User-Name")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-Name header is required"})
		return "", "", false
	}
	role := models.Role(c.GetHeader("X-User-Role"))
	if role == "" {
		role = models.RoleReader
	}
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-Role must be Reader or Librarian"})
		return "", "", false
	}
	return username, role, true
}

func requireLibrarian(c *gin.Context) (string, bool) {
	username, role, ok := identity(c)
	if !ok {
		return "", false
	}
	if role != models.RoleLibrarian {
		c.JSON(http.StatusForbidden, gin.H{"error": "librarian role required"})
		return "", false
	}
	return username, true
}

// writeDomainError maps circulation errors onto HTTP statuses.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, circulation.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, circulation.ErrAlreadyReturned):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, circulation.ErrNotAvailable),
		errors.Is(err, circulation.ErrInvalidState),
		errors.Is(err, circulation.ErrNoCopyAvailable),
		errors.Is(err, circulation.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func bookJSON(copy models.BookCopy) gin.H {
	return gin.H{
		"copyUid":  copy.CopyUid,
		"author":   copy.Author,
		"title":    copy.Title,
		"isbn":     copy.ISBN,
		"category": copy.Category,
		"shelfLoc": copy.ShelfLoc,
		"status":   copy.Status,
	}
}

func loanJSON(loan *models.Loan) gin.H {
	item := gin.H{
		"loanUid":     loan.LoanUid,
		"borrowerUid": loan.BorrowerUid,
		"copyUid":     loan.Copy.CopyUid,
		"title":       loan.Copy.Title,
		"borrowDate":  loan.BorrowDate.Format("2006-01-02"),
		"dueDate":     loan.DueDate.Format("2006-01-02"),
		"delay":       loan.Delay,
	}
	if loan.ReturnDate != nil {
		item["returnDate"] = loan.ReturnDate.Format("2006-01-02")
	} else {
		item["returnDate"] = nil
	}
	return item
}

func reservationJSON(res *models.Reservation) gin.H {
	return gin.H{
		"reservationUid": res.ReservationUid,
		"borrowerUid":    res.BorrowerUid,
		"isbn":           res.ISBN,
		"reserveDate":    res.ReserveDate.Format("2006-01-02"),
		"status":         res.Status,
	}
}

func getBooks(c *gin.Context) {
	copies, err := catalog.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, len(copies))
	for i, copy := range copies {
		items[i] = bookJSON(copy)
	}
	c.JSON(http.StatusOK, items)
}

func getBook(c *gin.Context) {
	copy, err := catalog.GetCopy(c.Param("copyUid"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookJSON(*copy))
}

func createBook(c *gin.Context) {
	if _, ok := requireLibrarian(c); !ok {
		return
	}
	var request struct {
		Author   string `json:"author"`
		Title    string `json:"title" binding:"required"`
		ISBN     string `json:"isbn" binding:"required"`
		Category string `json:"category"`
		ShelfLoc string `json:"shelfLoc"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	copy := models.BookCopy{
		CopyUid:  uuid.New().String(),
		Author:   request.Author,
		Title:    request.Title,
		ISBN:     request.ISBN,
		Category: request.Category,
		ShelfLoc: request.ShelfLoc,
		Status:   models.StatusAvailable,
	}
	if err := db.Create(&copy).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create book copy"})
		return
	}
	c.JSON(http.StatusCreated, bookJSON(copy))
}

// updateBook edits shelf metadata. Status is deliberately not editable here:
// it belongs to the circulation coordinator.
func updateBook(c *gin.Context) {
	if _, ok := requireLibrarian(c); !ok {
		return
	}
	var request struct {
		Author   string `json:"author"`
		Title    string `json:"title"`
		Category string `json:"category"`
		ShelfLoc string `json:"shelfLoc"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	copy, err := catalog.UpdateDetails(c.Param("copyUid"),
		request.Author, request.Title, request.Category, request.ShelfLoc)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookJSON(*copy))
}

func createLoan(c *gin.Context) {
	username, _, ok := identity(c)
	if !ok {
		return
	}
	var request struct {
		CopyUid string `json:"copyUid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	loan, err := coord.Borrow(username, request.CopyUid)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loanJSON(loan))
}

func returnLoan(c *gin.Context) {
	if _, ok := requireLibrarian(c); !ok {
		return
	}
	loan, err := coord.Return(c.Param("loanUid"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, loanJSON(loan))
}

func getLoans(c *gin.Context) {
	username, role, ok := identity(c)
	if !ok {
		return
	}
	var (
		loans []models.Loan
		err   error
	)
	if role == models.RoleLibrarian {
		loans, err = ledger.ListAll()
	} else {
		loans, err = ledger.ListForBorrower(username)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, len(loans))
	for i := range loans {
		items[i] = loanJSON(&loans[i])
	}
	c.JSON(http.StatusOK, items)
}

func getOverdueLoans(c *gin.Context) {
	if _, ok := requireLibrarian(c); !ok {
		return
	}
	loans, err := ledger.ListOverdue()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, len(loans))
	for i := range loans {
		items[i] = loanJSON(&loans[i])
	}
	c.JSON(http.StatusOK, items)
}

func getDueSoonLoans(c *gin.Context) {
	if _, ok := requireLibrarian(c); !ok {
		return
	}
	window, err := strconv.Atoi(c.DefaultQuery("window", "7"))
	if err != nil || window < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "window must be a non-negative number of days"})
		return
	}
	loans, err := ledger.ListDueSoon(window)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, len(loans))
	for i := range loans {
		items[i] = loanJSON(&loans[i])
	}
	c.JSON(http.StatusOK, items)
}

func getOverdueSummary(c *gin.Context) {
	if _, ok := requireLibrarian(c); !ok {
		return
	}
	summary, err := ledger.OverdueSummary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func createReservation(c *gin.Context) {
	username, _, ok := identity(c)
	if !ok {
		return
	}
	var request struct {
		ISBN string `json:"isbn" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	reservation, err := queue.Create(username, request.ISBN)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create reservation"})
		return
	}
	c.JSON(http.StatusCreated, reservationJSON(reservation))
}

func cancelReservation(c *gin.Context) {
	username, role, ok := identity(c)
	if !ok {
		return
	}
	reservationUid := c.Param("reservationUid")
	if role != models.RoleLibrarian {
		// readers may only cancel their own reservations
		reservation, err := queue.Get(reservationUid)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		if reservation.BorrowerUid != username {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your reservation"})
			return
		}
	}
	reservation, err := coord.CancelReservation(reservationUid)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservationJSON(reservation))
}

func fulfillReservation(c *gin.Context) {
	if _, ok := requireLibrarian(c); !ok {
		return
	}
	loan, reservation, err := coord.FulfillReservation(c.Param("reservationUid"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reservation": reservationJSON(reservation),
		"loan":        loanJSON(loan),
	})
}

func getReservations(c *gin.Context) {
	username, role, ok := identity(c)
	if !ok {
		return
	}
	var (
		reservations []models.Reservation
		err          error
	)
	if role == models.RoleLibrarian {
		reservations, err = queue.ListAll()
	} else {
		reservations, err = queue.ListForBorrower(username)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, len(reservations))
	for i := range reservations {
		items[i] = reservationJSON(&reservations[i])
	}
	c.JSON(http.StatusOK, items)
}

func getReviews(c *gin.Context) {
	var reviews []models.Review
	query := db.Order("review_date DESC, id DESC")
	if isbn := c.Query("isbn"); isbn != "" {
		query = query.Where("isbn = ?", isbn)
	}
	if err := query.Find(&reviews).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	items := make([]gin.H, len(reviews))
	for i, review := range reviews {
		items[i] = gin.H{
			"reviewUid":   review.ReviewUid,
			"borrowerUid": review.BorrowerUid,
			"isbn":        review.ISBN,
			"rating":      review.Rating,
			"comment":     review.Comment,
			"reviewDate":  review.ReviewDate.Format("2006-01-02"),
		}
	}
	c.JSON(http.StatusOK, items)
}

func createReview(c *gin.Context) {
	username, _, ok := identity(c)
	if !ok {
		return
	}
	var request struct {
		ISBN    string `json:"isbn" binding:"required"`
		Rating  int    `json:"rating" binding:"required"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if request.Rating < 1 || request.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
		return
	}
	review := models.Review{
		ReviewUid:   uuid.New().String(),
		BorrowerUid: username,
		ISBN:        request.ISBN,
		Rating:      request.Rating,
		Comment:     request.Comment,
		ReviewDate:  time.Now().UTC(),
	}
	if err := db.Create(&review).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create review"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"reviewUid":  review.ReviewUid,
		"isbn":       review.ISBN,
		"rating":     review.Rating,
		"comment":    review.Comment,
		"reviewDate": review.ReviewDate.Format("2006-01-02"),
	})
}

func getStats(c *gin.Context) {
	var totalCopies, borrowedCopies, readers, librarians int64
	if err := db.Model(&models.BookCopy{}).Count(&totalCopies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	db.Model(&models.BookCopy{}).Where("status = ?", models.StatusBorrowed).Count(&borrowedCopies)
	db.Model(&models.Borrower{}).Where("role = ?", models.RoleReader).Count(&readers)
	db.Model(&models.Borrower{}).Where("role = ?", models.RoleLibrarian).Count(&librarians)

	c.JSON(http.StatusOK, gin.H{
		"totalBooks":    totalCopies,
		"borrowedBooks": borrowedCopies,
		"userRoles": gin.H{
			"readers":    readers,
			"librarians": librarians,
		},
	})
}

func seedTestData() {
	borrowers := []models.Borrower{
		{BorrowerUid: "a2f1c0de-6f31-4f0a-9c6a-1f2ab3c4d5e6", Name: "Alice Reader", Email: "alice@example.com", Role: models.RoleReader},
		{BorrowerUid: "b3e2d1cf-7a42-4b1b-8d7b-2a3bc4d5e6f7", Name: "Bob Librarian", Email: "bob@example.com", Role: models.RoleLibrarian},
	}
	for _, b := range borrowers {
		var existing models.Borrower
		if err := db.Where("borrower_uid = ?", b.BorrowerUid).First(&existing).Error; err != nil {
			if err := db.Create(&b).Error; err != nil {
				log.Printf("Failed to create borrower %s: %v", b.Name, err)
			}
		}
	}

	copies := []models.BookCopy{
		{Author: "George Orwell", Title: "1984", ISBN: "978-0-452-28423-4", Category: "Fiction", ShelfLoc: "A-12"},
		{Author: "George Orwell", Title: "1984", ISBN: "978-0-452-28423-4", Category: "Fiction", ShelfLoc: "A-13"},
		{Author: "Sun Tzu", Title: "The Art of War", ISBN: "978-1-59030-963-7", Category: "Philosophy", ShelfLoc: "B-04"},
	}
	for _, copy := range copies {
		var existing models.BookCopy
		if err := db.Where("title = ? AND shelf_loc = ?", copy.Title, copy.ShelfLoc).First(&existing).Error; err != nil {
			copy.CopyUid = uuid.New().String()
			copy.Status = models.StatusAvailable
			if err := db.Create(&copy).Error; err != nil {
				log.Printf("Failed to create book copy %s: %v", copy.Title, err)
			}
		}
	}
	log.Println("Circulation test data seeded")
}

func healthCheck(ctx *gin.Context) {
	sqlDB, err := db.DB()
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"details": "Circulation service is active",
	})
}
