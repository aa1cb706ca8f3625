package http

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/zeroturbo/core"
)

var codePages = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>ZeroTurbo</title></head>
<body>
<form method="post" action="/code/authorize">
<input type="hidden" name="request" value="{{.Request}}">
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Email}}<p>Enter the pin code sent to {{.Email}}</p>
<input type="hidden" name="email" value="{{.Email}}">
<input type="hidden" name="action" value="verify">
<input name="code" inputmode="numeric" autocomplete="one-time-code" autofocus required>
<button type="submit">Continue</button>
</form>
<form method="post" action="/code/authorize">
<input type="hidden" name="request" value="{{.Request}}">
<input type="hidden" name="email" value="{{.Email}}">
<input type="hidden" name="action" value="request">
<button type="submit">Resend code</button>
{{else}}<p>Enter your email to get a pin code</p>
<input type="hidden" name="action" value="request">
<input name="email" type="email" autocomplete="email" autofocus required>
<button type="submit">Continue</button>
{{end}}
</form>
</body>
</html>
`))

type codePage struct {
	Request string
	Email   string
	Error   string
}

func renderCodePage(c *gin.Context, status int, page codePage) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-store")
	c.Status(status)
	if err := codePages.Execute(c.Writer, page); err != nil {
		_ = c.Error(err)
	}
}

// CodeForm renders the email form of the pin code provider
func (h *IssuerHandlers) CodeForm(c *gin.Context) {
	requestID := c.Query("request")
	if _, err := h.issuer.Request(c.Request.Context(), requestID); err != nil {
		h.requestFailed(c, err)
		return
	}

	renderCodePage(c, http.StatusOK, codePage{Request: requestID})
}

// CodeSubmit handles both steps of the pin code provider
func (h *IssuerHandlers) CodeSubmit(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := c.PostForm("request")
	email := c.PostForm("email")

	switch c.PostForm("action") {
	case "request":
		err := h.issuer.SendCode(ctx, requestID, email)
		switch {
		case err == nil:
			renderCodePage(c, http.StatusOK, codePage{Request: requestID, Email: email})
		case errors.Is(err, core.ErrInvalidEmail):
			renderCodePage(c, http.StatusBadRequest, codePage{Request: requestID, Error: "Invalid email"})
		default:
			h.requestFailed(c, err)
		}

	case "verify":
		redirect, err := h.issuer.VerifyCode(ctx, requestID, c.PostForm("code"))
		switch {
		case err == nil:
			c.Redirect(http.StatusFound, redirect)
		case errors.Is(err, core.ErrInvalidCode):
			renderCodePage(c, http.StatusBadRequest, codePage{Request: requestID, Email: email, Error: "Invalid code"})
		case errors.Is(err, core.ErrTooManyAttempts):
			renderCodePage(c, http.StatusBadRequest, codePage{Request: requestID, Error: "Too many attempts, request a new code"})
		default:
			h.requestFailed(c, err)
		}

	default:
		renderCodePage(c, http.StatusBadRequest, codePage{Request: requestID, Error: "Invalid action"})
	}
}

func (h *IssuerHandlers) requestFailed(c *gin.Context, err error) {
	if errors.Is(err, core.ErrInvalidRequest) {
		c.String(http.StatusBadRequest, "Authorization request expired, start again from the app")
		return
	}
	_ = c.Error(err)
	c.String(http.StatusInternalServerError, "Something went wrong")
}
