package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"booklend/pkg/ledger"
	"booklend/pkg/models"
)

func setupTestDB() *gorm.DB {
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect test database")
	}
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := ledger.Migrate(testDB); err != nil {
		panic("failed to migrate test database")
	}
	return testDB
}

func testTime(hour int) time.Time {
	return time.Date(2024, 5, 1, hour, 0, 0, 0, time.UTC)
}

func borrowRequest(bookUid string, issue, ret time.Time) *http.Request {
	requestBody := map[string]interface{}{
		"bookUid":    bookUid,
		"issueTime":  issue.Format(time.RFC3339),
		"returnTime": ret.Format(time.RFC3339),
	}
	jsonBody, _ := json.Marshal(requestBody)
	req := httptest.NewRequest("POST", "/api/v1/bookings", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGetAvailabilityNoBookings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTestDB()
	db = testDB
	bookings = ledger.New(testDB)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/books/test-book-uid/availability", nil)
	c.Params = gin.Params{gin.Param{Key: "bookUid", Value: "test-book-uid"}}

	getAvailability(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, true, response["available"])
	assert.Nil(t, response["nextAvailableAt"])
}

func TestGetAvailabilityDuringBooking(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTestDB()
	db = testDB
	bookings = ledger.New(testDB)

	_, err := bookings.Borrow("test-book-uid", "test-user-uid", testTime(10), testTime(12))
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	url := "/api/v1/books/test-book-uid/availability?at=" + testTime(11).Format(time.RFC3339)
	c.Request = httptest.NewRequest("GET", url, nil)
	c.Params = gin.Params{gin.Param{Key: "bookUid", Value: "test-book-uid"}}

	getAvailability(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, false, response["available"])
	next, err := time.Parse(time.RFC3339, response["nextAvailableAt"].(string))
	assert.NoError(t, err)
	assert.True(t, next.Equal(testTime(12)))
}

func TestGetAvailabilityAfterReturnTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTestDB()
	db = testDB
	bookings = ledger.New(testDB)

	_, err := bookings.Borrow("test-book-uid", "test-user-uid", testTime(10), testTime(12))
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	url := "/api/v1/books/test-book-uid/availability?at=" + testTime(12).Format(time.RFC3339)
	c.Request = httptest.NewRequest("GET", url, nil)
	c.Params = gin.Params{gin.Param{Key: "bookUid", Value: "test-book-uid"}}

	getAvailability(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, true, response["available"])
}

func TestGetAvailabilityBadAtParameter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTestDB()
	db = testDB
	bookings = ledger.New(testDB)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/books/test-book-uid/availability?at=yesterday", nil)
	c.Params = gin.Params{gin.Param{Key: "bookUid", Value: "test-book-uid"}}

	getAvailability(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBooking(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTestDB()
	db = testDB
	bookings = ledger.New(testDB)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = borrowRequest("test-book-uid", testTime(10), testTime(12))
	c.Request.Header.Set("X-User-Uid", "test-user-uid")

	createBooking(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.NotNil(t, response["bookingUid"])

	var booking models.Booking
	err := testDB.Where("book_uid = ?", "test-book-uid").First(&booking).Error
	assert.NoError(t, err)
	assert.Equal(t, "test-user-uid", booking.UserUid)
}

func TestCreateBookingMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTestDB()
	db = testDB
	bookings = ledger.New(testDB)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = borrowRequest("test-book-uid", testTime(10), testTime(12))

	createBooking(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBookingInvalidInterval(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTestDB()
	db = testDB
	bookings = ledger.New(testDB)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = borrowRequest("test-book-uid", testTime(12), testTime(10))
	c.Request.Header.Set("X-User-Uid", "test-user-uid")

	createBooking(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	testDB.Model(&models.Booking{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCreateBookingConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTestDB()
	db = testDB
	bookings = ledger.New(testDB)

	_, err := bookings.Borrow("test-book-uid", "user-1", testTime(10), testTime(12))
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = borrowRequest("test-book-uid", testTime(11), testTime(13))
	c.Request.Header.Set("X-User-Uid", "user-2")

	createBooking(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	next, parseErr := time.Parse(time.RFC3339, response["nextAvailableAt"].(string))
	assert.NoError(t, parseErr)
	assert.True(t, next.Equal(testTime(12)))

	var count int64
	testDB.Model(&models.Booking{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateBookingTouchingBoundary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTestDB()
	db = testDB
	bookings = ledger.New(testDB)

	_, err := bookings.Borrow("test-book-uid", "user-1", testTime(12), testTime(14))
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = borrowRequest("test-book-uid", testTime(14), testTime(16))
	c.Request.Header.Set("X-User-Uid", "user-2")

	createBooking(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	testDB.Model(&models.Booking{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestGetBookings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTestDB()
	db = testDB
	bookings = ledger.New(testDB)

	_, err := bookings.Borrow("book-1", "test-user-uid", testTime(10), testTime(12))
	assert.NoError(t, err)
	_, err = bookings.Borrow("book-2", "other-user-uid", testTime(10), testTime(12))
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/bookings", nil)
	c.Request.Header.Set("X-User-Uid", "test-user-uid")

	getBookings(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, 1, len(response))
	assert.Equal(t, "book-1", response[0]["bookUid"])
}

func TestGetBookingsMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	testDB := setupTestDB()
	db = testDB
	bookings = ledger.New(testDB)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/bookings", nil)

	getBookings(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
