package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"draughtsman/internal/domain"
	"draughtsman/internal/engine/auth"
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware attaches the principal of a bearer token when one is sent.
// Anonymous requests pass through; a malformed or invalid token is refused.
func newAuthMiddleware(basePath string, svc auth.Service) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" || req.URL.Path == healthPath {
				next.ServeHTTP(w, req)
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			principal, err := svc.Verify(token)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

type authInput struct {
	ContentType string `header:"Content-Type"`
}

type authOutput struct {
	Status int
	Body   domain.AuthResult `json:"body"`
}

func registerAuth(api huma.API, svc auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/auth/register",
		Summary:     "Create an account and sign in",
		Description: "Takes fullName, email, password and confirmPassword as JSON or form fields.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *authInput) (*authOutput, error) {
		raw, err := parseFormBody(input.ContentType, bodyBytes(ctx))
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		res := svc.Register(ctx, raw)
		return &authOutput{Status: authStatus(res), Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Sign in with e-mail and password",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *authInput) (*authOutput, error) {
		raw, err := parseFormBody(input.ContentType, bodyBytes(ctx))
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		res := svc.Login(ctx, raw)
		return &authOutput{Status: authStatus(res), Body: res}, nil
	})
}

func authStatus(res domain.AuthResult) int {
	switch {
	case res.Success:
		return http.StatusOK
	case res.Message == auth.MessageEmailTaken:
		return http.StatusConflict
	case res.Message == auth.MessageBadLogin:
		return http.StatusUnauthorized
	case len(res.Issues) > 0:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body auth.Principal `json:"body"`
	}, error) {
		principal, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body auth.Principal `json:"body"`
		}{Body: principal}, nil
	})
}
