package controllers

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ecoguide/ecoguide/config"
	"github.com/ecoguide/ecoguide/models"
	"github.com/ecoguide/ecoguide/utils"
)

// AuthController handles account registration, login and profile editing.
// It never touches the puntos/co2_evitado aggregate; that belongs to the
// progress recorder.
type AuthController struct {
	db *gorm.DB
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const tokenLifetime = 72 * time.Hour

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Nombre   string `json:"nombre"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}

	req.Nombre = utils.Sanitize(strings.TrimSpace(req.Nombre))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if l := len([]rune(req.Nombre)); l < 2 || l > 30 {
		utils.Error(ctx, http.StatusBadRequest, "el nombre debe tener entre 2 y 30 caracteres")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		utils.Error(ctx, http.StatusBadRequest, "email inválido")
		return
	}
	if len(req.Password) < 6 {
		utils.Error(ctx, http.StatusBadRequest, "la contraseña debe tener al menos 6 caracteres")
		return
	}

	ip := ctx.ClientIP()
	if !utils.RegistrationCooldownTry(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, "espera unos segundos antes de volver a intentarlo")
		return
	}
	if !utils.RegistrationDailyLimitCheck(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, "se alcanzó el límite de registros por hoy")
		return
	}

	var existing int64
	if err := a.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo completar el registro")
		return
	}
	if existing > 0 {
		utils.Error(ctx, http.StatusConflict, "el email ya está registrado")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo completar el registro")
		return
	}

	user := models.User{
		Nombre:       req.Nombre,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := a.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo completar el registro")
		return
	}

	utils.RegistrationDailyIncrement(ip)

	token, err := utils.GenerateToken(user.ID, user.Email, tokenLifetime)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo generar el token")
		return
	}

	utils.Success(ctx, gin.H{
		"token":   token,
		"usuario": ownerUserResponse(user),
	})
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}

	ip := ctx.ClientIP()
	if utils.LoginIsBanned(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, "demasiados intentos fallidos, inténtalo más tarde")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := a.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		a.recordLoginFailure(ip)
		utils.Error(ctx, http.StatusUnauthorized, "email o contraseña incorrectos")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		a.recordLoginFailure(ip)
		utils.Error(ctx, http.StatusUnauthorized, "email o contraseña incorrectos")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Email, tokenLifetime)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo generar el token")
		return
	}

	utils.Success(ctx, gin.H{
		"token":   token,
		"usuario": ownerUserResponse(user),
	})
}

func (a *AuthController) recordLoginFailure(ip string) {
	limit := config.Get().LoginFailedMaxPerIPPerHour
	if n := utils.LoginFailRecord(ip); limit > 0 && n >= limit {
		utils.LoginBan(ip)
	}
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusUnauthorized, "cabecera de autorización inválida")
		return
	}

	token := strings.TrimSpace(parts[1])
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, "token inválido")
		return
	}

	expiresAt := time.Now().Add(tokenLifetime)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)

	utils.Success(ctx, gin.H{"mensaje": "sesión cerrada"})
}

// Me returns the authenticated user's profile.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "no autorizado")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, "usuario no encontrado")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo cargar el usuario")
		return
	}

	utils.Success(ctx, gin.H{"usuario": ownerUserResponse(user)})
}

// UpdateProfile edits identity fields only. Aggregate fields are out of
// reach here; the progress endpoints own them.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "no autorizado")
		return
	}

	type request struct {
		Nombre    *string `json:"nombre"`
		Bio       *string `json:"bio"`
		AvatarURL *string `json:"avatar_url"`
		Password  *string `json:"password"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, "usuario no encontrado")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo cargar el usuario")
		return
	}

	if req.Nombre != nil {
		nombre := utils.Sanitize(strings.TrimSpace(*req.Nombre))
		if l := len([]rune(nombre)); l < 2 || l > 30 {
			utils.Error(ctx, http.StatusBadRequest, "el nombre debe tener entre 2 y 30 caracteres")
			return
		}
		user.Nombre = nombre
	}
	if req.Bio != nil {
		user.Bio = utils.Sanitize(strings.TrimSpace(*req.Bio))
	}
	if req.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}
	if req.Password != nil {
		if len(*req.Password) < 6 {
			utils.Error(ctx, http.StatusBadRequest, "la contraseña debe tener al menos 6 caracteres")
			return
		}
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, "no se pudo actualizar el perfil")
			return
		}
		user.PasswordHash = hash
	}

	if err := a.db.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo actualizar el perfil")
		return
	}

	utils.InvalidateByPrefix("cache:usuario:" + strconv.FormatUint(uint64(user.ID), 10))

	utils.Success(ctx, gin.H{"usuario": ownerUserResponse(user)})
}

// GetUserPublic returns public user info by ID.
func (a *AuthController) GetUserPublic(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, "id de usuario inválido")
		return
	}
	cacheKey := "cache:usuario:" + strconv.FormatUint(uint64(id), 10)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, "usuario no encontrado")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo cargar el usuario")
		return
	}

	body := gin.H{"success": true, "usuario": publicUserResponse(user)}
	utils.CacheSetJSON(cacheKey, body, time.Hour)
	ctx.JSON(http.StatusOK, body)
}

func publicUserResponse(user models.User) gin.H {
	return gin.H{
		"id":          user.ID,
		"nombre":      user.Nombre,
		"avatar_url":  user.AvatarURL,
		"bio":         user.Bio,
		"puntos":      user.Puntos,
		"co2_evitado": user.CO2Evitado,
		"created_at":  user.CreatedAt,
	}
}

func ownerUserResponse(user models.User) gin.H {
	m := publicUserResponse(user)
	m["email"] = user.Email
	return m
}
