package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/layer-3/zeroturbo/logger"
)

// Client configures the CLI and any other session holder
type Client struct {
	APIURL          string `env:"API_URL,required"  validate:"url"`
	AuthURL         string `env:"AUTH_URL,required" validate:"url"`
	Stage           string `env:"STAGE,required"    validate:"stage"`
	ZeroURL         string `env:"ZERO_URL,required" validate:"url"`
	ClientID        string `env:"CLIENT_ID"         envDefault:"cli"            validate:"required"`
	RedirectAddr    string `env:"REDIRECT_ADDR"     envDefault:"127.0.0.1:3000" validate:"hostname_port"`
	CredentialsFile string `env:"CREDENTIALS_FILE"`

	Log logger.Config
}

// RedirectURI is the loopback address the issuer sends the browser back to
func (c *Client) RedirectURI() string {
	return "http://" + c.RedirectAddr + "/"
}

// Issuer configures the authorization server
type Issuer struct {
	Addr          string `env:"ISSUER_ADDR"       envDefault:":8080" validate:"required"`
	URL           string `env:"ISSUER_URL,required"        validate:"url"`
	FrontendURL   string `env:"AUTH_FRONTEND_URL,required" validate:"url"`
	DatabaseURL   string `env:"DATABASE_URL,required"      validate:"url"`
	RedisURL      string `env:"REDIS_URL"                  validate:"omitempty,url"`
	PrivateJWK    string `env:"ISSUER_PRIVATE_JWK"`
	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"log" validate:"oneof=ses log"`
	// EmailSender is the verified SES domain pin codes are sent from
	EmailSender string   `env:"EMAIL_SENDER" validate:"required_if=EmailProvider ses"`
	ClientIDs   []string `env:"CLIENT_IDS" envSeparator:","`
	Stage       string   `env:"STAGE" envDefault:"dev" validate:"stage"`

	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"  validate:"gt=0"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h" validate:"gtfield=AccessTTL"`
	RequestTTL time.Duration `env:"AUTH_REQUEST_TTL"  envDefault:"10m"  validate:"gt=0"`
	CodeTTL    time.Duration `env:"AUTH_CODE_TTL"     envDefault:"1m"   validate:"gt=0"`

	Log logger.Config
}

// API configures the account API
type API struct {
	Addr        string `env:"API_ADDR" envDefault:":8081" validate:"required"`
	DatabaseURL string `env:"DATABASE_URL,required"      validate:"url"`
	AuthURL     string `env:"AUTH_URL,required"          validate:"url"`
	FrontendURL string `env:"AUTH_FRONTEND_URL,required" validate:"url"`
	Stage       string `env:"STAGE" envDefault:"dev" validate:"stage"`

	Log logger.Config
}

var (
	validate = newValidator()

	// stagePattern matches stage names usable as a DNS label, such as "dev" or "pr-123"
	stagePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("stage", func(fl validator.FieldLevel) bool {
		return stagePattern.MatchString(fl.Field().String())
	})
	return v
}

// LoadClient reads the client configuration from the environment
func LoadClient() (*Client, error) {
	return load[Client]()
}

// LoadIssuer reads the issuer configuration from the environment
func LoadIssuer() (*Issuer, error) {
	return load[Issuer]()
}

// LoadAPI reads the API configuration from the environment
func LoadAPI() (*API, error) {
	return load[API]()
}

func load[T any]() (*T, error) {
	cfg := new(T)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
