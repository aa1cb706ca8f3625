package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/zeroturbo/core"
	"github.com/layer-3/zeroturbo/service"
)

// AccountHandlers serves the account API
type AccountHandlers struct {
	accounts *service.AccountService
}

// NewAccountHandlers creates new account handlers
func NewAccountHandlers(accounts *service.AccountService) *AccountHandlers {
	return &AccountHandlers{accounts: accounts}
}

type accountResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	TimeCreated time.Time `json:"time_created"`
}

// Account returns the account owning the bearer token
func (h *AccountHandlers) Account(c *gin.Context) {
	subject, ok := subjectFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Subject not found in context"})
		return
	}

	account, err := h.accounts.Get(c.Request.Context(), subject)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load account"})
		return
	}

	c.JSON(http.StatusOK, accountResponse{
		ID:          account.ID,
		Email:       account.Email,
		TimeCreated: account.TimeCreated,
	})
}

// Hello is the API's liveness route
func (h *AccountHandlers) Hello(c *gin.Context) {
	c.String(http.StatusOK, "Hello")
}
