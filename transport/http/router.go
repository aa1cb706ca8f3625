package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/zeroturbo/logger"
	"github.com/layer-3/zeroturbo/ports"
	"github.com/layer-3/zeroturbo/service"
	"go.uber.org/zap"
)

func newEngine(log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(logger.GinMiddleware(log), logger.Recovery(log))
	return router
}

// SetupIssuerRouter sets up the OAuth issuer routes
func SetupIssuerRouter(issuer *service.IssuerService, tokenizer ports.Tokenizer, issuerURL string, log *zap.Logger) *gin.Engine {
	router := newEngine(log)

	handlers := NewIssuerHandlers(issuer, tokenizer, issuerURL)

	router.GET("/authorize", handlers.Authorize)
	router.POST("/token", handlers.Token)
	router.POST("/logout", handlers.Logout)

	code := router.Group("/code")
	{
		code.GET("/authorize", handlers.CodeForm)
		code.POST("/authorize", handlers.CodeSubmit)
	}

	wellKnown := router.Group("/.well-known")
	{
		wellKnown.GET("/jwks.json", handlers.JWKS)
		wellKnown.GET("/oauth-authorization-server", handlers.Metadata)
	}

	// Protected routes
	protected := router.Group("/")
	protected.Use(AuthMiddleware(issuer))
	{
		protected.GET("/userinfo", handlers.UserInfo)
	}

	return router
}

// SetupAPIRouter sets up the account API routes
func SetupAPIRouter(accounts *service.AccountService, verifier ports.AccessVerifier, origins []string, log *zap.Logger) *gin.Engine {
	router := newEngine(log)
	router.Use(CORS(origins))

	handlers := NewAccountHandlers(accounts)

	router.GET("/", handlers.Hello)

	protected := router.Group("/")
	protected.Use(BearerMiddleware(verifier))
	{
		protected.GET("/account", handlers.Account)
	}

	return router
}
