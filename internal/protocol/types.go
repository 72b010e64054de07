// Package protocol implements the DeliHood REST contract.
// This file defines the wire structures and endpoint paths of the backend.
package protocol

import (
	"sync"
	"time"

	"github.com/delihood/client/internal/models"
)

// Client version reported in the User-Agent header
const ClientVersion = "1.0.0"

// REST endpoint paths
const (
	EndpointLogin           = "/auth/login"
	EndpointRegister        = "/auth/register"
	EndpointRefresh         = "/auth/refresh"
	EndpointLogout          = "/auth/logout"
	EndpointGoogleSign      = "/auth/google-sign"
	EndpointPasswordToken   = "/auth/generate-password-token"
	EndpointNewPassword     = "/auth/new-password"
	EndpointMe              = "/api/me"
	EndpointMyOrders        = "/api/me/orders"
	EndpointMyOrder         = "/api/me/order"
	EndpointOrderUpdate     = "/api/order/update"
	EndpointOrderCancel     = "/api/order/cancel"
	EndpointOrderPayment    = "/api/order/payment"
	EndpointNewOrder        = "/api/new-order"
	EndpointChangePrefix    = "/api/change/"
	EndpointUploadPfp       = "/api/upload-pfp"
	EndpointMainScreen      = "/api/main-screen"
	EndpointGenerateConfirm = "/confirmations/generate-confirm"
	EndpointConfirmMail     = "/confirmations/confirm-mail"
)

// Request limits
const (
	DefaultRequestTimeout = 30 * time.Second

	// MaxRefreshRetries bounds the re-issues of one logical call after a 401,
	// giving at most MaxRefreshRetries+1 attempts.
	MaxRefreshRetries = 2

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 8 << 20

	// pfpMaxWidth is the width profile pictures are scaled down to.
	pfpMaxWidth = 800
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register. Password is absent for
// accounts created through Google sign-in.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password *string `json:"password,omitempty"`
	Phone    string  `json:"phone"`
	Username string  `json:"username"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type registerResponse struct {
	Success *bool   `json:"success"`
	Error   *string `json:"error"`
}

type wrongCredentialsResponse struct {
	IsIncorrectPasswordOrUser *bool `json:"isIncorrectPasswordOrUser"`
}

type meResponse struct {
	Status *bool       `json:"status"`
	Data   models.User `json:"data"`
}

type ordersResponse struct {
	Data []models.OrderHistory `json:"data"`
}

type orderDetailResponse struct {
	Data models.OrderHistory `json:"data"`
}

type mainScreenResponse struct {
	Success bool          `json:"success"`
	Data    []models.Cook `json:"data"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type cancelRequest struct {
	ID int `json:"id"`
}

type editFieldRequest struct {
	NewValue string `json:"newValue"`
}

type tokenBody struct {
	Token string `json:"token"`
}

type passwordResetMail struct {
	Email string `json:"email"`
}

type newPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// GoogleRegistration is returned by google-sign when the account does not
// exist yet. The caller completes it with Register.
type GoogleRegistration struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	IDToken  string `json:"-"`
}

// GoogleSignResult is either a signed-in session or a pending registration.
type GoogleSignResult struct {
	SignedIn     bool
	Registration *GoogleRegistration
}

// Statistics tracks request outcomes for the status bar
type Statistics struct {
	TotalRequests       int64
	SuccessfulRequests  int64
	FailedRequests      int64
	Refreshes           int64
	AverageResponseTime time.Duration
	LastRequestTime     time.Time
}

type statsRecorder struct {
	mutex sync.Mutex
	stats Statistics
}

func (r *statsRecorder) request(responseTime time.Duration, success bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stats := &r.stats
	stats.TotalRequests++
	stats.LastRequestTime = time.Now()

	if success {
		stats.SuccessfulRequests++
	} else {
		stats.FailedRequests++
	}

	if stats.TotalRequests == 1 {
		stats.AverageResponseTime = responseTime
	} else {
		total := stats.AverageResponseTime * time.Duration(stats.TotalRequests-1)
		stats.AverageResponseTime = (total + responseTime) / time.Duration(stats.TotalRequests)
	}
}

func (r *statsRecorder) refresh() {
	r.mutex.Lock()
	r.stats.Refreshes++
	r.mutex.Unlock()
}

func (r *statsRecorder) snapshot() Statistics {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.stats
}
