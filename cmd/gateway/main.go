package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"booklend/pkg/circuitbreaker"
	"booklend/pkg/config"
	"booklend/pkg/queue"
	"booklend/pkg/token"
)

var (
	identityServiceURL string
	catalogServiceURL  string
	bookingServiceURL  string
	jwtSecret          string
	httpClient         *http.Client

	identityBreaker *circuitbreaker.CircuitBreaker
	catalogBreaker  *circuitbreaker.CircuitBreaker
	bookingBreaker  *circuitbreaker.CircuitBreaker

	probes *queue.Queue

	downstreamMu     sync.RWMutex
	downstreamStatus = map[string]string{}
)

const probeInterval = 10 * time.Second

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	identityServiceURL = cfg.IdentityURL
	catalogServiceURL = cfg.CatalogURL
	bookingServiceURL = cfg.BookingURL
	jwtSecret = cfg.JWTSecret

	httpClient = &http.Client{
		Timeout: 10 * time.Second,
	}

	identityBreaker = circuitbreaker.New(5, 30*time.Second)
	catalogBreaker = circuitbreaker.New(5, 30*time.Second)
	bookingBreaker = circuitbreaker.New(5, 30*time.Second)

	probes = queue.NewQueue()
	probes.Enqueue(&queue.Probe{Service: "identity", URL: identityServiceURL + "/manage/health"})
	probes.Enqueue(&queue.Probe{Service: "catalog", URL: catalogServiceURL + "/manage/health"})
	probes.Enqueue(&queue.Probe{Service: "booking", URL: bookingServiceURL + "/manage/health"})
	go runHealthMonitor()

	r := gin.Default()

	r.POST("/api/signup", signupHandler)
	r.POST("/api/login", loginHandler)
	r.POST("/api/books/create", createBookHandler)
	r.GET("/api/books", searchBooksHandler)
	r.GET("/api/books/:bookUid/availability", getAvailabilityHandler)
	r.POST("/api/books/borrow", authRequired(), borrowBookHandler)
	r.GET("/api/bookings", authRequired(), getBookingsHandler)
	r.GET("/manage/health", healthCheck)

	log.Printf("Gateway service starting on %s", cfg.Addr)
	r.Run(cfg.Addr)
}

// authRequired validates the caller's JWT and stores the authenticated
// user uid on the context. The booking core never sees raw headers.
func authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := token.FromAuthHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims, err := token.Parse(jwtSecret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set("userUid", claims.UserUid)
		c.Next()
	}
}

func signupHandler(c *gin.Context) {
	proxyJSON(c, identityBreaker, "POST", identityServiceURL+"/api/v1/users/register")
}

func loginHandler(c *gin.Context) {
	proxyJSON(c, identityBreaker, "POST", identityServiceURL+"/api/v1/users/login")
}

func createBookHandler(c *gin.Context) {
	proxyJSON(c, catalogBreaker, "POST", catalogServiceURL+"/api/v1/books")
}

func searchBooksHandler(c *gin.Context) {
	url := catalogServiceURL + "/api/v1/books"
	if params := c.Request.URL.Query().Encode(); params != "" {
		url += "?" + params
	}
	proxyJSON(c, catalogBreaker, "GET", url)
}

func getAvailabilityHandler(c *gin.Context) {
	bookUid := c.Param("bookUid")

	exists, err := bookExists(bookUid)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog service unavailable"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}

	url := fmt.Sprintf("%s/api/v1/books/%s/availability", bookingServiceURL, bookUid)
	if params := c.Request.URL.Query().Encode(); params != "" {
		url += "?" + params
	}
	proxyJSON(c, bookingBreaker, "GET", url)
}

func borrowBookHandler(c *gin.Context) {
	userUid := c.GetString("userUid")

	var request struct {
		BookUid    string `json:"bookUid" binding:"required"`
		IssueTime  string `json:"issueTime" binding:"required"`
		ReturnTime string `json:"returnTime" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "validation error",
			"errors": map[string]string{
				"field": "request",
				"error": err.Error(),
			},
		})
		return
	}

	exists, err := bookExists(request.BookUid)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog service unavailable"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
		return
	}

	body, err := json.Marshal(request)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create request body"})
		return
	}
	req, err := http.NewRequest("POST", bookingServiceURL+"/api/v1/bookings", bytes.NewBuffer(body))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create the request"})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Uid", userUid)

	resp, err := doWithBreaker(bookingBreaker, req)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "booking service unavailable"})
		return
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read the response"})
		return
	}
	c.Data(resp.StatusCode, "application/json", data)
}

func getBookingsHandler(c *gin.Context) {
	userUid := c.GetString("userUid")

	req, err := http.NewRequest("GET", bookingServiceURL+"/api/v1/bookings", nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create the request"})
		return
	}
	req.Header.Set("X-User-Uid", userUid)

	resp, err := doWithBreaker(bookingBreaker, req)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "booking service unavailable"})
		return
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read the response"})
		return
	}
	c.Data(resp.StatusCode, "application/json", data)
}

func healthCheck(c *gin.Context) {
	downstreamMu.RLock()
	services := gin.H{}
	for name, status := range downstreamStatus {
		services[name] = status
	}
	downstreamMu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":   "UP",
		"services": services,
	})
}

// proxyJSON forwards the incoming request body and admin key to the given
// downstream URL and relays the response as-is.
func proxyJSON(c *gin.Context, cb *circuitbreaker.CircuitBreaker, method, url string) {
	var reqBody io.Reader
	if method != "GET" {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read request body"})
			return
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create the request"})
		return
	}
	if method != "GET" {
		req.Header.Set("Content-Type", "application/json")
	}
	if adminKey := c.GetHeader("X-Admin-Key"); adminKey != "" {
		req.Header.Set("X-Admin-Key", adminKey)
	}

	resp, err := doWithBreaker(cb, req)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		return
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read the response"})
		return
	}
	c.Data(resp.StatusCode, "application/json", data)
}

func doWithBreaker(cb *circuitbreaker.CircuitBreaker, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := cb.Execute(func() error {
		r, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// bookExists asks the catalog about the book. A catalog failure is
// reported as an error, not as a missing book, so callers can answer
// with a server-side status instead of a terminal 404.
func bookExists(bookUid string) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/books/%s", catalogServiceURL, bookUid)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return false, err
	}
	resp, err := doWithBreaker(catalogBreaker, req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}
}

// runHealthMonitor drains due probes, records each downstream's status and
// reschedules the probe.
func runHealthMonitor() {
	for {
		p := probes.Dequeue()
		if p == nil {
			time.Sleep(time.Second)
			continue
		}

		status := "DOWN"
		resp, err := httpClient.Get(p.URL)
		if err == nil {
			if resp.StatusCode == http.StatusOK {
				status = "UP"
			}
			resp.Body.Close()
		}

		downstreamMu.Lock()
		downstreamStatus[p.Service] = status
		downstreamMu.Unlock()

		p.NextAt = time.Now().Add(probeInterval)
		probes.Enqueue(p)
	}
}
