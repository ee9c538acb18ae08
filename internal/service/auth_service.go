package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"order-tracking-service/internal/model"
)

const adminPermission = "admin"

// Caller es la identidad autenticada que invoca una operación.
// System marca procesos internos (consumidor de pagos, simulador).
type Caller struct {
	ID          string
	Name        string
	Permissions []string
	System      bool
}

// SystemCaller identifica a un proceso interno ya autenticado por su transporte.
func SystemCaller(name string) *Caller {
	return &Caller{ID: name, Name: name, System: true}
}

func (c *Caller) IsAdmin() bool {
	return c != nil && slices.Contains(c.Permissions, adminPermission)
}

// CanAccess: procesos internos, admins y el dueño de la orden.
// Una orden sin dueño (compra de invitado) la puede leer cualquier usuario autenticado.
func (c *Caller) CanAccess(o *model.Order) bool {
	if c == nil {
		return false
	}
	if c.System || c.IsAdmin() {
		return true
	}
	return o.UserID == "" || o.UserID == c.ID
}

// CanModify es más estricto que CanAccess: una orden sin dueño solo la
// modifican procesos internos y admins.
func (c *Caller) CanModify(o *model.Order) bool {
	if c == nil {
		return false
	}
	if c.System || c.IsAdmin() {
		return true
	}
	return o.UserID != "" && o.UserID == c.ID
}

// Servicio que consulta al microservicio externo de autenticación.
type AuthService struct {
	authURL string
	client  *http.Client
}

type AuthUser struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Login       string   `json:"login"`
	Enabled     bool     `json:"enabled"`
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUserDisabled = errors.New("user disabled")
)

func NewAuthService(authURL string) *AuthService {
	return &AuthService{
		authURL: strings.TrimRight(authURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Valida el token consultando a /users/current del microservicio de auth.
func (a *AuthService) ValidateToken(ctx context.Context, token string) (*Caller, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/users/current", a.authURL), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidToken
	}

	var user AuthUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrUserDisabled
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}

	return &Caller{ID: user.ID, Name: user.Name, Permissions: user.Permissions}, nil
}
