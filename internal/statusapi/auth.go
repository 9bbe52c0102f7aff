package statusapi

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"dispatch-and-delivery/internal/models"
	"dispatch-and-delivery/pkg/authutil"
)

const tokenTTL = 8 * time.Hour

// adminClaims is the JWT payload issued on a successful login,
// checked by echo-jwt on every other statusapi route.
type adminClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Login checks the bound credential against the configured admin
// username/bcrypt hash and issues a signed bearer token on success.
func (s *Server) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "username and password are required"})
	}

	if req.Username != s.adminUser || !authutil.VerifyPassword(s.adminHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: "invalid credentials"})
	}

	now := s.now()
	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		Username: req.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "failed to issue token"})
	}
	return c.JSON(http.StatusOK, models.LoginResponse{Token: signed})
}
