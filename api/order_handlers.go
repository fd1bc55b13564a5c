package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/cartpilot/builder"
	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/session"
)

func (s *Server) createOrder(c *gin.Context) {
	var req struct {
		Items      []core.GroceryItem `json:"items"`
		Allergens  []string           `json:"allergens"`
		FamilySize int                `json:"familySize"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
		return
	}

	record, err := s.orders.Submit(c.Request.Context(), userID(c), builder.Request{
		Items:      req.Items,
		Allergens:  req.Allergens,
		FamilySize: req.FamilySize,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": record})
}

// processOrder runs the cart build for a pending order using the caller's
// remote session.
func (s *Server) processOrder(c *gin.Context) {
	var req struct {
		AddressID string `json:"addressId"`
	}
	// The body is optional; the address can come later at checkout.
	_ = c.ShouldBindJSON(&req)

	creds, err := session.Resolve(c.Request.Context(), s.sessions, userID(c), s.auth)
	if err != nil {
		s.fail(c, err)
		return
	}

	addressID := req.AddressID
	if addressID == "" {
		addressID = creds.AddressID
	}

	cartAPI := s.newCartAPI(creds.AccessToken, addressID)
	record, err := s.orders.Process(c.Request.Context(), c.Param("id"), s.newBuilder(cartAPI))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": record})
}

func (s *Server) checkoutOrder(c *gin.Context) {
	var req struct {
		AddressID     string `json:"addressId"`
		PaymentMethod string `json:"paymentMethod"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = core.PaymentMethodCOD
	}

	creds, err := session.Resolve(c.Request.Context(), s.sessions, userID(c), s.auth)
	if err != nil {
		s.fail(c, err)
		return
	}

	cartAPI := s.newCartAPI(creds.AccessToken, req.AddressID)
	record, err := s.orders.Checkout(c.Request.Context(), c.Param("id"), req.AddressID, req.PaymentMethod, cartAPI)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": record})
}

func (s *Server) cancelOrder(c *gin.Context) {
	record, err := s.orders.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": record})
}

func (s *Server) getOrder(c *gin.Context) {
	record, err := s.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": record})
}

func (s *Server) listOrders(c *gin.Context) {
	records, err := s.orders.List(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"orders": records}})
}
