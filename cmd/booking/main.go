package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"booklend/pkg/config"
	"booklend/pkg/database"
	"booklend/pkg/ledger"
)

var (
	db       *gorm.DB
	bookings *ledger.Ledger
)

func main() {
	log.Println("Starting booking service...")

	cfg, err := config.LoadBooking()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db = database.InitBookingDB(cfg.Database)
	bookings = ledger.New(db)

	server := gin.Default()
	server.GET("/api/v1/books/:bookUid/availability", getAvailability)
	server.POST("/api/v1/bookings", createBooking)
	server.GET("/api/v1/bookings", getBookings)
	server.GET("/manage/health", healthCheck)

	log.Printf("Booking service starting on %s", cfg.Addr)
	if err := server.Run(cfg.Addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func getAvailability(c *gin.Context) {
	bookUid := c.Param("bookUid")

	at := time.Now()
	if atstr := c.Query("at"); atstr != "" {
		parsed, err := time.Parse(time.RFC3339, atstr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid at parameter, use RFC3339"})
			return
		}
		at = parsed
	}

	availability, err := bookings.CheckAvailability(bookUid, at)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if availability.Available {
		c.JSON(http.StatusOK, gin.H{
			"bookUid":   bookUid,
			"available": true,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bookUid":         bookUid,
		"available":       false,
		"nextAvailableAt": availability.NextAvailableAt.Format(time.RFC3339),
	})
}

func createBooking(c *gin.Context) {
	userUid := c.GetHeader("X-User-Uid")
	if userUid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-Uid header is required"})
		return
	}

	var request struct {
		BookUid    string `json:"bookUid" binding:"required"`
		IssueTime  string `json:"issueTime" binding:"required"`
		ReturnTime string `json:"returnTime" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	issueTime, err := time.Parse(time.RFC3339, request.IssueTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issueTime, use RFC3339"})
		return
	}
	returnTime, err := time.Parse(time.RFC3339, request.ReturnTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid returnTime, use RFC3339"})
		return
	}

	booking, err := bookings.Borrow(request.BookUid, userUid, issueTime, returnTime)
	if err != nil {
		var conflict *ledger.ConflictError
		switch {
		case errors.Is(err, ledger.ErrInvalidInterval):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &conflict):
			c.JSON(http.StatusConflict, gin.H{
				"error":           "Book is not available for the requested window",
				"nextAvailableAt": conflict.NextAvailableAt.Format(time.RFC3339),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create booking"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Book booked successfully",
		"bookingUid": booking.BookingUid,
		"bookUid":    booking.BookUid,
		"issueTime":  booking.IssueTime.Format(time.RFC3339),
		"returnTime": booking.ReturnTime.Format(time.RFC3339),
	})
}

func getBookings(c *gin.Context) {
	userUid := c.GetHeader("X-User-Uid")
	if userUid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-Uid header is required"})
		return
	}

	list, err := bookings.ListByUser(userUid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]gin.H, len(list))
	for i, b := range list {
		items[i] = gin.H{
			"bookingUid": b.BookingUid,
			"bookUid":    b.BookUid,
			"issueTime":  b.IssueTime.Format(time.RFC3339),
			"returnTime": b.ReturnTime.Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, items)
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
		"details": "Booking service is active",
	})
}
