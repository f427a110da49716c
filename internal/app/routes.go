package app

import (
	"github.com/Vrajp222/Donation-Tracker/internal/handler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (a *App) RegisterRoutes(h *handler.WalletHandler) {
	auth := a.Router.Group("/auth")
	auth.POST("/signup", h.SignUp)
	auth.POST("/login", h.Login)
	auth.POST("/logout", h.Logout)

	wallet := a.Router.Group("/wallet")
	wallet.GET("", h.GetWallet)
	wallet.POST("/funds", h.AddFunds)

	donations := a.Router.Group("/donations")
	donations.POST("", h.MakeDonation)
	donations.GET("", h.GetDonations)

	a.Router.PUT("/goal", h.SetGoal)
	a.Router.GET("/goal", h.GetGoal)

	a.Router.GET("/charities/:category", h.SearchCharities)

	a.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
