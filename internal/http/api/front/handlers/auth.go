package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/fetchify-app/fetchify/internal/config"
	"github.com/fetchify-app/fetchify/internal/mail"
	"github.com/fetchify-app/fetchify/internal/models"
	"github.com/fetchify-app/fetchify/internal/security"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Signup and verification grants.
const (
	// SignupCredits is the balance every new account starts with.
	SignupCredits = 10
	// VerificationBonusCredits is granted once when the email is verified.
	VerificationBonusCredits = 100
	// verificationCodeTTL bounds how long an emailed code stays valid.
	verificationCodeTTL = 15 * time.Minute
	// resetTokenTTL bounds how long a password reset link stays valid.
	resetTokenTTL = time.Hour
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthHandler handles account endpoints.
type AuthHandler struct {
	db          *gorm.DB
	jwtCfg      config.JWTConfig
	mailer      mail.Mailer
	frontendURL string
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, mailer mail.Mailer, frontendURL string) *AuthHandler {
	if mailer == nil {
		mailer = mail.NopMailer{}
	}
	return &AuthHandler{
		db:          db,
		jwtCfg:      jwtCfg,
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// requestLanguage resolves the caller's language from the body field or the
// Accept-Language header.
func requestLanguage(c *gin.Context, bodyLang string) string {
	if lang := strings.TrimSpace(bodyLang); lang != "" {
		return lang
	}
	header := c.GetHeader("Accept-Language")
	if idx := strings.IndexAny(header, ",;"); idx > 0 {
		header = header[:idx]
	}
	return strings.TrimSpace(header)
}

// registerRequest defines the request body for registration.
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Language string `json:"language"`
}

// Register creates a new account with a starter balance and a default API
// key, and emails a verification code.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if !emailPattern.MatchString(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if !security.ValidPassword(password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	var exists models.User
	if errCheck := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&exists).Error; errCheck == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	} else if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	keyToken, errKey := security.GenerateAPIKey()
	if errKey != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate api key failed"})
		return
	}
	code, errCode := security.GenerateVerificationCode()
	if errCode != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate verification code failed"})
		return
	}

	now := time.Now().UTC()
	user := models.User{
		Email:     email,
		Name:      strings.TrimSpace(body.Name),
		Password:  hash,
		Credits:   SignupCredits,
		CreatedAt: now,
		UpdatedAt: now,
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}
		defaultKey := models.APIKey{
			UserID:   user.ID,
			Name:     "Default",
			Key:      keyToken,
			IsActive: true,
		}
		if errCreate := tx.Create(&defaultKey).Error; errCreate != nil {
			return errCreate
		}
		verification := models.VerificationCode{
			UserID:    user.ID,
			Code:      code,
			ExpiresAt: now.Add(verificationCodeTTL),
		}
		return tx.Create(&verification).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	lang := requestLanguage(c, body.Language)
	go func() {
		subject, mailBody := mail.VerificationEmail(lang, user.Name, code)
		if errSend := h.mailer.Send(user.Email, subject, mailBody); errSend != nil {
			log.WithError(errSend).Warnf("auth: verification mail to %s failed", user.Email)
		}
	}()

	token, errToken := security.GenerateToken(h.jwtCfg.Secret, user.ID, user.Email, user.Name, user.IsAdmin, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate token failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":   token,
		"api_key": keyToken,
		"user":    serializeUser(&user),
	})
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and issues a session JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	password := strings.TrimSpace(body.Password)
	if email == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email or password"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !security.CheckPassword(user.Password, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errToken := security.GenerateToken(h.jwtCfg.Secret, user.ID, user.Email, user.Name, user.IsAdmin, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  serializeUser(&user),
	})
}

// verifyEmailRequest defines the request body for email verification.
type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyEmail checks the emailed code and grants the one-time verification
// bonus.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var body verifyEmailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	code := strings.TrimSpace(body.Code)
	if email == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email or code"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; errFind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		return
	}
	if user.IsVerified {
		c.JSON(http.StatusOK, gin.H{"verified": true})
		return
	}

	now := time.Now().UTC()
	var verification models.VerificationCode
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ? AND code = ? AND expires_at > ?", user.ID, code, now).
		Order("created_at DESC").
		First(&verification).Error; errFind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired code"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		// The is_verified guard makes the bonus single-shot even when two
		// verification requests race.
		res := tx.Model(&models.User{}).
			Where("id = ? AND is_verified = ?", user.ID, false).
			Updates(map[string]any{
				"is_verified":       true,
				"email_verified_at": &now,
				"credits":           gorm.Expr("credits + ?", VerificationBonusCredits),
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		return tx.Where("user_id = ?", user.ID).Delete(&models.VerificationCode{}).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}

	lang := requestLanguage(c, "")
	go func() {
		subject, mailBody := mail.WelcomeEmail(lang, user.Name, VerificationBonusCredits)
		if errSend := h.mailer.Send(user.Email, subject, mailBody); errSend != nil {
			log.WithError(errSend).Warnf("auth: welcome mail to %s failed", user.Email)
		}
	}()

	c.JSON(http.StatusOK, gin.H{
		"verified":        true,
		"credits_granted": VerificationBonusCredits,
	})
}

// emailRequest defines request bodies that carry only an email address.
type emailRequest struct {
	Email    string `json:"email"`
	Language string `json:"language"`
}

// ResendVerification issues a fresh verification code. The response does not
// reveal whether the address is registered.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var body emailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	if errFind == nil && !user.IsVerified {
		code, errCode := security.GenerateVerificationCode()
		if errCode == nil {
			now := time.Now().UTC()
			errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
				if errDelete := tx.Where("user_id = ?", user.ID).Delete(&models.VerificationCode{}).Error; errDelete != nil {
					return errDelete
				}
				return tx.Create(&models.VerificationCode{
					UserID:    user.ID,
					Code:      code,
					ExpiresAt: now.Add(verificationCodeTTL),
				}).Error
			})
			if errTx == nil {
				lang := requestLanguage(c, body.Language)
				go func() {
					subject, mailBody := mail.VerificationEmail(lang, user.Name, code)
					if errSend := h.mailer.Send(user.Email, subject, mailBody); errSend != nil {
						log.WithError(errSend).Warnf("auth: verification mail to %s failed", user.Email)
					}
				}()
			} else {
				log.WithError(errTx).Warn("auth: rotate verification code failed")
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// ForgotPassword issues a reset link. The response is identical whether or
// not the address is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var body emailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; errFind == nil {
		token, errToken := security.GenerateResetToken()
		if errToken == nil {
			reset := models.PasswordResetToken{
				UserID:    user.ID,
				Token:     token,
				ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
			}
			if errCreate := h.db.WithContext(c.Request.Context()).Create(&reset).Error; errCreate == nil {
				lang := requestLanguage(c, body.Language)
				resetURL := h.frontendURL + "/reset-password?token=" + token
				go func() {
					subject, mailBody := mail.PasswordResetEmail(lang, user.Name, resetURL)
					if errSend := h.mailer.Send(user.Email, subject, mailBody); errSend != nil {
						log.WithError(errSend).Warnf("auth: reset mail to %s failed", user.Email)
					}
				}()
			} else {
				log.WithError(errCreate).Warn("auth: create reset token failed")
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// resetPasswordRequest defines the request body for password resets.
type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword consumes a reset token and replaces the password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var body resetPasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	token := strings.TrimSpace(body.Token)
	password := strings.TrimSpace(body.Password)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	if !security.ValidPassword(password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	now := time.Now().UTC()
	var reset models.PasswordResetToken
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("token = ? AND used = ? AND expires_at > ?", token, false, now).
		First(&reset).Error; errFind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		// Marking the token used inside the conditional update keeps the
		// link single-use under concurrent submissions.
		res := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used = ?", reset.ID, false).
			Update("used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		// A successful reset voids every other outstanding link for the
		// account.
		if errDelete := tx.Where("user_id = ? AND id <> ?", reset.UserID, reset.ID).
			Delete(&models.PasswordResetToken{}).Error; errDelete != nil {
			return errDelete
		}
		return tx.Model(&models.User{}).
			Where("id = ?", reset.UserID).
			Updates(map[string]any{
				"password":   hash,
				"updated_at": now,
			}).Error
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// serializeUser converts a user row to an API payload.
func serializeUser(user *models.User) gin.H {
	return gin.H{
		"id":          user.ID,
		"email":       user.Email,
		"name":        user.Name,
		"credits":     user.Credits,
		"is_admin":    user.IsAdmin,
		"is_verified": user.IsVerified,
		"created_at":  user.CreatedAt,
	}
}
