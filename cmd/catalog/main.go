package main

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"booklend/pkg/config"
	"booklend/pkg/database"
	"booklend/pkg/models"
)

var (
	db       *gorm.DB
	adminKey string
)

func main() {
	log.Println("Starting catalog service...")

	cfg, err := config.LoadCatalog()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	adminKey = cfg.AdminKey

	db = database.InitCatalogDB(cfg.Database)

	seedTestData()

	server := gin.Default()
	server.POST("/api/v1/books", createBook)
	server.GET("/api/v1/books", searchBooks)
	server.GET("/api/v1/books/:bookUid", getBook)
	server.GET("/manage/health", healthCheck)

	log.Printf("Catalog service starting on %s", cfg.Addr)
	if err := server.Run(cfg.Addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func createBook(c *gin.Context) {
	if c.GetHeader("X-Admin-Key") != adminKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var request struct {
		Title  string `json:"title" binding:"required"`
		Author string `json:"author"`
		Isbn   string `json:"isbn"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	book := models.Book{
		BookUid: uuid.New().String(),
		Title:   request.Title,
		Author:  request.Author,
		Isbn:    request.Isbn,
	}
	if err := db.Create(&book).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create book"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Book added successfully",
		"bookUid": book.BookUid,
	})
}

func searchBooks(c *gin.Context) {
	title := c.Query("title")
	pagestr := c.DefaultQuery("page", "1")
	sizestr := c.DefaultQuery("size", "10")

	page, err := strconv.Atoi(pagestr)
	if err != nil || page < 1 {
		page = 1
	}

	size, err := strconv.Atoi(sizestr)
	if err != nil || size < 1 || size > 100 {
		size = 10
	}

	var books []models.Book
	query := db.Model(&models.Book{})
	if title != "" {
		query = query.Where("title LIKE ?", "%"+title+"%")
	}

	var totalelem int64
	if err := query.Count(&totalelem).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	offset := (page - 1) * size
	err = query.Offset(offset).Limit(size).Find(&books).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]gin.H, len(books))
	for i, book := range books {
		items[i] = gin.H{
			"bookUid": book.BookUid,
			"title":   book.Title,
			"author":  book.Author,
			"isbn":    book.Isbn,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"page":          page,
		"pageSize":      size,
		"totalElements": totalelem,
		"items":         items,
	})
}

func getBook(c *gin.Context) {
	bookUid := c.Param("bookUid")

	var book models.Book
	if err := db.Where("book_uid = ?", bookUid).First(&book).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookUid": book.BookUid,
		"title":   book.Title,
		"author":  book.Author,
		"isbn":    book.Isbn,
	})
}

func seedTestData() {
	testBookUid := "f7cdc58f-2caf-4b15-9727-f89dcc629b27"

	var testBook models.Book
	if err := db.Where("book_uid = ?", testBookUid).First(&testBook).Error; err != nil {
		testBook = models.Book{
			BookUid: testBookUid,
			Title:   "The Go Programming Language",
			Author:  "Alan A. A. Donovan",
			Isbn:    "978-0134190440",
		}
		if err := db.Create(&testBook).Error; err != nil {
			log.Printf("Failed to create test book: %v", err)
		} else {
			log.Printf("Created test book: %s", testBook.Title)
		}
	}

	books := []models.Book{
		{Title: "Clean Code", Author: "Robert C. Martin", Isbn: "978-0132350884"},
		{Title: "The Pragmatic Programmer", Author: "Andrew Hunt", Isbn: "978-0201616224"},
	}

	for _, book := range books {
		var existing models.Book
		if err := db.Where("title = ?", book.Title).First(&existing).Error; err != nil {
			book.BookUid = uuid.New().String()
			if err := db.Create(&book).Error; err != nil {
				log.Printf("Failed to create book %s: %v", book.Title, err)
			}
		}
	}
	log.Println("Catalog test data seeded")
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
		"details": "Catalog service is active",
	})
}
