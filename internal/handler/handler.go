package handler

import (
	"context"
	"math"
	"net/http"

	"github.com/Vrajp222/Donation-Tracker/internal/charity"
	"github.com/Vrajp222/Donation-Tracker/internal/identity"
	"github.com/Vrajp222/Donation-Tracker/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Ledger defines the wallet operations the HTTP surface exposes.
type Ledger interface {
	AddFunds(amount float64) error
	MakeDonation(amount float64, charityName string) bool
	SetGoal(amount float64)
	Goal() *float64
	Snapshot() models.WalletSnapshot
	Donations() []models.DonationRecord
}

// AuthService drives sessions against the identity provider.
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (*identity.User, error)
	SignUp(ctx context.Context, email, password string) (*identity.User, error)
	SignOut()
	CurrentUser() *identity.User
}

// CharitySearcher finds nonprofits by category.
type CharitySearcher interface {
	Search(ctx context.Context, category string) ([]charity.Nonprofit, error)
}

// WalletHandler serves the wallet, donation, goal, auth, and charity
// discovery endpoints.
type WalletHandler struct {
	Ledger    Ledger
	Auth      AuthService
	Charities CharitySearcher
}

func NewWalletHandler(l Ledger, a AuthService, c CharitySearcher) *WalletHandler {
	return &WalletHandler{
		Ledger:    l,
		Auth:      a,
		Charities: c,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type amountRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

type donationRequest struct {
	Amount  float64 `json:"amount" binding:"required"`
	Charity string  `json:"charity" binding:"required"`
}

// POST /auth/signup
func (h *WalletHandler) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.Auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		logrus.Errorf("Error signing up: %s", err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user_id": user.ID, "email": user.Email})
}

// POST /auth/login
func (h *WalletHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		logrus.Errorf("Error signing in: %s", err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "email": user.Email})
}

// POST /auth/logout
func (h *WalletHandler) Logout(c *gin.Context) {
	h.Auth.SignOut()
	c.Status(http.StatusNoContent)
}

// GET /wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	c.JSON(http.StatusOK, h.Ledger.Snapshot())
}

// POST /wallet/funds
//
// The positive-amount check lives here, not in the ledger: the transport is
// the validation boundary.
func (h *WalletHandler) AddFunds(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if math.IsNaN(req.Amount) || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	if err := h.Ledger.AddFunds(req.Amount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.Ledger.Snapshot())
}

// POST /donations
func (h *WalletHandler) MakeDonation(c *gin.Context) {
	var req donationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if math.IsNaN(req.Amount) || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	if !h.Ledger.MakeDonation(req.Amount, req.Charity) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient funds"})
		return
	}

	c.JSON(http.StatusCreated, h.Ledger.Snapshot())
}

// GET /donations
func (h *WalletHandler) GetDonations(c *gin.Context) {
	if h.Auth.CurrentUser() == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	donations := h.Ledger.Donations()
	if donations == nil {
		donations = []models.DonationRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"donations": donations})
}

// PUT /goal
func (h *WalletHandler) SetGoal(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if math.IsNaN(req.Amount) || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	h.Ledger.SetGoal(req.Amount)
	c.JSON(http.StatusOK, gin.H{"goal": req.Amount})
}

// GET /goal
func (h *WalletHandler) GetGoal(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"goal": h.Ledger.Goal()})
}

// GET /charities/:category
func (h *WalletHandler) SearchCharities(c *gin.Context) {
	nonprofits, err := h.Charities.Search(c.Request.Context(), c.Param("category"))
	if err != nil {
		logrus.Errorf("Error fetching charities: %s", err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"error": "charity search unavailable"})
		return
	}

	nonprofits = charity.Filter(nonprofits, c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"nonprofits": nonprofits})
}
