package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/valerit/react-kanban/internal/domain"
	"github.com/valerit/react-kanban/internal/http/body"
	"github.com/valerit/react-kanban/internal/http/problem"
)

type credentials struct {
	Username    string
	Password    string
	DisplayName string
}

// Routes registers the /auth endpoints on r.
func (a *Authenticator) Routes(r gin.IRouter) {
	r.POST("/signup", a.signup)
	r.POST("/login", a.login)
	r.GET("/signout", a.signout)
	r.GET("/me", RequireUser(), a.me)
}

var errInvalidPayload = domain.NewInvalidRequestError(errors.New("invalid request payload"))

// bindCredentials reads the fields from the body parsed earlier in the
// pipeline, JSON or URL-encoded.
func bindCredentials(c *gin.Context) (credentials, error) {
	fields, ok := body.FormFrom(c)
	if !ok {
		v, _ := body.JSONFrom(c)
		if fields, ok = v.(map[string]interface{}); !ok {
			return credentials{}, errInvalidPayload
		}
	}

	var req credentials
	for key, dst := range map[string]*string{
		"username":    &req.Username,
		"password":    &req.Password,
		"displayName": &req.DisplayName,
	} {
		v, present := fields[key]
		if !present || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return credentials{}, errInvalidPayload
		}
		*dst = s
	}
	return req, nil
}

func (a *Authenticator) signup(c *gin.Context) {
	req, err := bindCredentials(c)
	if err != nil {
		problem.Abort(c, err)
		return
	}

	user, err := a.Register(c.Request.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		problem.Abort(c, err)
		return
	}
	if err := a.Login(c, user); err != nil {
		problem.Abort(c, err)
		return
	}

	a.logger.Info("user signed up", zap.String("user", user.ID))
	c.JSON(http.StatusCreated, user)
}

func (a *Authenticator) login(c *gin.Context) {
	req, err := bindCredentials(c)
	if err != nil {
		problem.Abort(c, err)
		return
	}

	user, err := a.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		problem.Abort(c, err)
		return
	}
	if err := a.Login(c, user); err != nil {
		problem.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (a *Authenticator) signout(c *gin.Context) {
	a.Logout(c)
	c.Redirect(http.StatusFound, "/")
}

func (a *Authenticator) me(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentUser(c))
}
