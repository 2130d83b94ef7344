package accounts

import (
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the auth surface on the given router:
//
//	POST /auth/register
//	POST /auth/login
//	POST /auth/logout
//	PUT  /auth/update        (bearer token required)
//	PUT  /auth/password      (bearer token required)
//	GET  /auth/verify-email
//	POST /auth/verify-email
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	protected := controller.Guard.ProtectedRoute(controller.ErrorHandler)

	app.Post("/auth/register", controller.Register).SetName("auth.register.post")
	app.Post("/auth/login", controller.Login).SetName("auth.login.post")
	app.Post("/auth/logout", controller.Logout).SetName("auth.logout.post")

	app.Put("/auth/update", protected(controller.Update)).SetName("auth.update.put")
	app.Put("/auth/password", protected(controller.Password)).SetName("auth.password.put")

	app.Get("/auth/verify-email", controller.VerifyEmail).SetName("auth.verify-email.get")
	app.Post("/auth/verify-email", controller.VerifyEmail).SetName("auth.verify-email.post")
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Service      *Provisioner
	Guard        *RouteGuard
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing Provisioner in auth controller...")
	}

	if c.Guard == nil {
		panic("Missing RouteGuard in auth controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = func(ctx router.Context, err error) error {
			return WriteError(ctx, err, c.Debug, c.Logger)
		}
	}

	return c
}

func WithAuthControllerService(service *Provisioner) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Service = service
		return c
	}
}

func WithAuthControllerGuard(guard *RouteGuard) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Guard = guard
		return c
	}
}

func WithAuthControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithAuthControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// UserResponse is the public profile shape. The activation token never leaves
// the service.
type UserResponse struct {
	ID            string     `json:"id"`
	KeycloakID    string     `json:"keycloakId"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Phone         string     `json:"phone,omitempty"`
	UserType      string     `json:"userType"`
	CompanyName   *string    `json:"companyName,omitempty"`
	TaxNumber     *string    `json:"taxNumber,omitempty"`
	TaxOffice     *string    `json:"taxOffice,omitempty"`
	EmailVerified bool       `json:"isEmailVerified"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

func NewUserResponse(user *User) UserResponse {
	return UserResponse{
		ID:            user.ID.String(),
		KeycloakID:    user.KeycloakID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Phone:         user.Phone,
		UserType:      user.UserType,
		CompanyName:   user.CompanyName,
		TaxNumber:     user.TaxNumber,
		TaxOffice:     user.TaxOffice,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

// MessageResponse is the body for operations with nothing else to return
type MessageResponse struct {
	Message string `json:"message"`
}

func (a *AuthController) Register(ctx router.Context) error {
	payload := new(RegisterInput)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload", "error", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body"))
	}

	if a.Debug {
		fmt.Println("======= AUTH REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("============================")
	}

	user, err := a.Service.Register(ctx.Context(), *payload)
	if err != nil {
		a.Logger.Error("register user", "email", payload.Email, "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.Logger.Info("user registered", "user_id", user.ID.String(), "email", user.Email)

	return ctx.JSON(router.StatusCreated, NewUserResponse(user))
}

func (a *AuthController) Login(ctx router.Context) error {
	payload := new(LoginInput)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body"))
	}

	tokens, err := a.Service.Login(ctx.Context(), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, tokens)
}

func (a *AuthController) Logout(ctx router.Context) error {
	payload := new(LogoutInput)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("logout parse payload", "error", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body"))
	}

	if err := a.Service.Logout(ctx.Context(), *payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, MessageResponse{Message: "logout successful"})
}

func (a *AuthController) Update(ctx router.Context) error {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrTokenInvalid)
	}

	payload := new(UpdateProfileInput)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("update parse payload", "error", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body"))
	}

	user, err := a.Service.UpdateProfile(ctx.Context(), principal.Subject, *payload)
	if err != nil {
		a.Logger.Error("update profile", "subject", principal.Subject, "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, NewUserResponse(user))
}

func (a *AuthController) Password(ctx router.Context) error {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrTokenInvalid)
	}

	payload := new(ResetPasswordInput)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password parse payload", "error", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body"))
	}

	if err := a.Service.ResetPassword(ctx.Context(), principal.Subject, *payload); err != nil {
		a.Logger.Error("reset password", "subject", principal.Subject, "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, MessageResponse{Message: "password updated"})
}

// VerifyEmailPayload is the POST body variant, GET uses ?token=
type VerifyEmailPayload struct {
	Token string `json:"token" form:"token"`
}

func (a *AuthController) VerifyEmail(ctx router.Context) error {
	token := ctx.Query("token", "")

	if token == "" {
		payload := new(VerifyEmailPayload)
		if err := ctx.Bind(payload); err == nil {
			token = payload.Token
		}
	}

	if token == "" {
		return a.ErrorHandler(ctx, ErrActivationTokenInvalid)
	}

	user, err := a.Service.VerifyEmail(ctx.Context(), token)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.Logger.Info("email verified", "user_id", user.ID.String(), "email", user.Email)

	return ctx.JSON(router.StatusOK, MessageResponse{Message: "email verified"})
}
