package main

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"booklend/pkg/config"
	"booklend/pkg/database"
	"booklend/pkg/models"
	"booklend/pkg/token"
)

var (
	db        *gorm.DB
	jwtSecret string
	tokenTTL  time.Duration
)

func main() {
	log.Println("Starting identity service...")

	cfg, err := config.LoadIdentity()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	jwtSecret = cfg.JWTSecret
	tokenTTL = time.Duration(cfg.TokenTTLMins) * time.Minute

	db = database.InitIdentityDB(cfg.Database)

	seedTestData()

	server := gin.Default()
	server.POST("/api/v1/users/register", registerUser)
	server.POST("/api/v1/users/login", loginUser)
	server.GET("/manage/health", healthCheck)

	log.Printf("Identity service starting on %s", cfg.Addr)
	if err := server.Run(cfg.Addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func registerUser(c *gin.Context) {
	var request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	var existing models.User
	if err := db.Where("username = ?", request.Username).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	user := models.User{
		UserUid:      uuid.New().String(),
		Username:     request.Username,
		PasswordHash: string(hash),
		Email:        request.Email,
	}
	if err := db.Create(&user).Error; err != nil {
		// A concurrent signup can slip past the pre-check; the unique
		// index is the authority, so its violation is still a 409.
		if isDuplicateErr(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Account successfully created",
		"userUid":  user.UserUid,
		"username": user.Username,
	})
}

func loginUser(c *gin.Context) {
	var request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	var user models.User
	if err := db.Where("username = ?", request.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect username/password provided. Please retry"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(request.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect username/password provided. Please retry"})
		return
	}

	accessToken, err := token.Issue(jwtSecret, user.UserUid, tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Login successful",
		"userUid":     user.UserUid,
		"accessToken": accessToken,
		"expiresIn":   int(tokenTTL.Seconds()),
	})
}

func isDuplicateErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func seedTestData() {
	var existing models.User
	if err := db.Where("username = ?", "alice").First(&existing).Error; err == nil {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Failed to hash seed password: %v", err)
		return
	}
	user := models.User{
		UserUid:      uuid.New().String(),
		Username:     "alice",
		PasswordHash: string(hash),
		Email:        "alice@example.com",
	}
	if err := db.Create(&user).Error; err != nil {
		log.Printf("Failed to create test user: %v", err)
		return
	}
	log.Println("Identity test data seeded")
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
		"details": "Identity service is active",
	})
}
