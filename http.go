package accounts

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// PrincipalContextKey is the Locals key the guard stores the verified principal under
const PrincipalContextKey = "principal"

const authScheme = "Bearer"

// RouteGuard admits requests that carry a valid bearer token and exposes the
// verified principal to downstream handlers.
type RouteGuard struct {
	verifier TokenVerifier
	logger   Logger
}

func NewRouteGuard(verifier TokenVerifier) *RouteGuard {
	return &RouteGuard{
		verifier: verifier,
		logger:   defLogger{},
	}
}

func (g *RouteGuard) WithLogger(l Logger) *RouteGuard {
	if l != nil {
		g.logger = l
	}
	return g
}

// ProtectedRoute verifies the bearer token before the handler runs. The
// principal lands in Locals under PrincipalContextKey.
func (g *RouteGuard) ProtectedRoute(errorHandler router.ErrorHandler) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = func(c router.Context, err error) error {
			return WriteError(c, err, false, defLogger{})
		}
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			raw, err := ExtractBearerToken(ctx)
			if err != nil {
				return errorHandler(ctx, err)
			}

			principal, err := g.verifier.Verify(ctx.Context(), raw)
			if err != nil {
				g.logger.Debug("token verification failed", "error", err)
				return errorHandler(ctx, err)
			}

			ctx.Locals(PrincipalContextKey, principal)

			return next(ctx)
		}
	}
}

// PrincipalFromContext returns the principal the guard stored for this request.
func PrincipalFromContext(ctx router.Context) (*Principal, bool) {
	principal, ok := ctx.Locals(PrincipalContextKey).(*Principal)
	return principal, ok && principal != nil
}

// ExtractBearerToken pulls the token out of the Authorization header. A
// missing header and a header without a token get distinct diagnostics so
// clients can tell the two apart.
func ExtractBearerToken(ctx router.Context) (string, error) {
	return parseBearer(ctx.GetString(router.HeaderAuthorization, ""))
}

func parseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrTokenMissing
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], authScheme) {
		return "", ErrTokenEmpty
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrTokenEmpty
	}

	return token, nil
}

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error      string            `json:"error"`
	Message    string            `json:"message"`
	Validation map[string]string `json:"validation,omitempty"`
	Details    map[string]any    `json:"details,omitempty"`
}

// WriteError renders a structured error. Responses expose the error kind and
// message only; debug additionally carries metadata and the root cause.
func WriteError(c router.Context, err error, debug bool, logger Logger) error {
	status, resp := buildErrorResponse(err, debug)

	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "status", status, "error", err)
	}

	return c.JSON(status, resp)
}

func buildErrorResponse(err error, debug bool) (int, ErrorResponse) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "Internal Server Error")
	}

	status := richErr.Code
	if status == 0 {
		status = statusFromCategory(richErr.Category)
	}

	resp := ErrorResponse{
		Error:   textCode(richErr),
		Message: richErr.Message,
	}

	if richErr.Category == goerrors.CategoryValidation {
		resp.Validation = richErr.ValidationMap()
	}

	if status >= http.StatusInternalServerError && !debug {
		resp.Message = "Internal Server Error"
	}

	if debug {
		resp.Details = map[string]any{
			"metadata": richErr.Metadata,
		}
		if richErr.Source != nil {
			resp.Details["cause"] = richErr.Source.Error()
		}
	}

	return status, resp
}

func textCode(err *goerrors.Error) string {
	if err.TextCode != "" {
		return err.TextCode
	}
	return "internal_error"
}

func statusFromCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryOperation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
