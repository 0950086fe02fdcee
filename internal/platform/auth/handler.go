package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &AuthHandler{svc: svc}
	r.POST("/login", h.Login)
	r.POST("/register", h.Register)
	r.DELETE("/accounts/:username", RequireAuth(svc.Secret()), RequireRole("admin"), h.DeleteAccount)
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud no válida"})
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if err == ErrBadCredential {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Usuario o contraseña invalidos"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo iniciar sesión"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

type RegisterRequest struct {
	Username string  `json:"username" binding:"required"`
	Mail     string  `json:"mail" binding:"required,email"`
	Password string  `json:"password" binding:"required"`
	Role     *string `json:"role,omitempty"` // defaults to user
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud no válida"})
		return
	}

	role := "user"
	if req.Role != nil && *req.Role != "" {
		role = *req.Role
	}

	if err := h.svc.Register(c.Request.Context(), req.Username, req.Mail, req.Password, role); err != nil {
		if err == ErrAlreadyExists {
			c.JSON(http.StatusConflict, gin.H{"error": "Ya existe un usuario con ese nombre"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo registrar el usuario"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"username": req.Username, "mail": req.Mail})
}

func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	username := c.Param("username")

	if err := h.svc.Delete(c.Request.Context(), username); err != nil {
		if err == ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "No existe esa cuenta"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo eliminar la cuenta"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
