package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/cartpilot/core"
	"github.com/hupe1980/cartpilot/session"
)

func (s *Server) sendOTP(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
		return
	}

	if !phonePattern.MatchString(req.Phone) {
		s.fail(c, core.NewValidationError(core.ReasonInvalidPhone, "phone number must be exactly 10 digits"))
		return
	}

	result, err := s.auth.SendOTP(c.Request.Context(), req.Phone)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": result})
}

func (s *Server) verifyOTP(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
		OTP   string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
		return
	}

	if !phonePattern.MatchString(req.Phone) {
		s.fail(c, core.NewValidationError(core.ReasonInvalidPhone, "phone number must be exactly 10 digits"))
		return
	}
	if !otpPattern.MatchString(req.OTP) {
		s.fail(c, core.NewValidationError(core.ReasonInvalidOTP, "otp must be exactly 6 digits"))
		return
	}

	auth, err := s.auth.VerifyOTP(c.Request.Context(), req.Phone, req.OTP)
	if err != nil {
		s.fail(c, err)
		return
	}

	creds := session.Credentials{
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		SwiggyUserID: auth.UserID,
	}
	if auth.ExpiresIn > 0 {
		creds.ExpiresAt = time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)
	}
	if err := s.sessions.Save(c.Request.Context(), userID(c), creds); err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info("api.swiggy.login", "user_id", userID(c))
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"success": true}})
}

// listAddresses returns the user's saved delivery addresses. Results are
// cached per user; ?refresh=true forces a remote reload.
func (s *Server) listAddresses(c *gin.Context) {
	uid := userID(c)
	refresh := c.Query("refresh") == "true"

	if !refresh {
		s.mu.RLock()
		cached, ok := s.addresses[uid]
		s.mu.RUnlock()
		if ok {
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"addresses": cached}})
			return
		}
	}

	creds, err := session.Resolve(c.Request.Context(), s.sessions, uid, s.auth)
	if err != nil {
		s.fail(c, err)
		return
	}

	addresses, err := s.auth.GetAddresses(c.Request.Context(), creds.AccessToken)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.mu.Lock()
	s.addresses[uid] = addresses
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"addresses": addresses}})
}
