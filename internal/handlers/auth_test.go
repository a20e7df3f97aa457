package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/zfogg/blog/backend/internal/auth"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/models"
)

func (suite *HandlersTestSuite) TestRegisterAndLogin() {
	body := gin.H{"email": "bob@example.com", "username": "bob", "password": "supersecret"}

	w := suite.request(http.MethodPost, "/api/v1/auth/register", "", body)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var tokens dto.TokenResponse
	suite.results(w, &tokens)
	suite.NotEmpty(tokens.AccessToken)
	suite.Require().NotNil(tokens.User)
	suite.Equal("bob", tokens.User.Username)

	w = suite.request(http.MethodPost, "/api/v1/auth/register", "", body)
	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal("A user with this email already exists.", suite.apiError(w).Message)

	w = suite.request(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "bob@example.com", "password": "supersecret"})
	suite.Require().Equal(http.StatusOK, w.Code)
	var login dto.LoginResponse
	suite.results(w, &login)
	suite.Require().NotNil(login.TokenResponse)
	suite.Equal(tokens.AccessToken, login.AccessToken)
	suite.False(login.TwoFactorRequired)

	w = suite.request(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "nobody@example.com", "password": "whatever"})
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.Equal("Invalid email or password.", suite.apiError(w).Message)
}

func (suite *HandlersTestSuite) TestRegisterValidation() {
	w := suite.request(http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "not-an-email", "username": "bob", "password": "supersecret"})
	suite.Equal(http.StatusBadRequest, w.Code)

	suite.auth.RegisterFunc = func(dto.RegisterRequest) (*models.User, error) {
		return nil, auth.ErrUsernameRestricted
	}
	w = suite.request(http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "root@example.com", "username": "root", "password": "supersecret"})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("username", suite.apiError(w).Field)
}

func (suite *HandlersTestSuite) TestLoginOutcomes() {
	suite.auth.LoginFunc = func(dto.LoginRequest) (*dto.LoginResponse, error) {
		return nil, auth.ErrInactiveUser
	}
	w := suite.request(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "x"})
	suite.Equal(http.StatusForbidden, w.Code)

	suite.auth.LoginFunc = func(dto.LoginRequest) (*dto.LoginResponse, error) {
		return &dto.LoginResponse{TwoFactorRequired: true}, nil
	}
	w = suite.request(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "x"})
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"two_factor_required":true`)
	suite.NotContains(w.Body.String(), `"access"`)
}

func (suite *HandlersTestSuite) TestRefresh() {
	w := suite.request(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": suite.aliceToken})
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.request(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": "garbage"})
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestMe() {
	w := suite.request(http.MethodGet, "/api/v1/auth/me", suite.aliceToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var me dto.UserResponse
	suite.results(w, &me)
	suite.Equal("alice", me.Username)
	suite.NotNil(me.Profile)

	w = suite.request(http.MethodGet, "/api/v1/auth/me", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

// provisionOTP provisions alice and returns her TOTP secret.
func (suite *HandlersTestSuite) provisionOTP() string {
	w := suite.request(http.MethodGet, "/api/v1/auth/otp/qr", suite.aliceToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var url string
	suite.results(w, &url)
	suite.Contains(url, suite.alice.ID)
	suite.Require().NotEmpty(suite.alice.OTPBase32)
	return suite.alice.OTPBase32
}

func (suite *HandlersTestSuite) code(secret string) string {
	code, err := totp.GenerateCode(secret, suite.clock)
	suite.Require().NoError(err)
	return code
}

func (suite *HandlersTestSuite) TestOTPVerifyIsSingleUse() {
	w := suite.request(http.MethodPost, "/api/v1/auth/otp/verify", suite.aliceToken, gin.H{"otp": "123456"})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("QR Code or OTP Base32 not found for user.", suite.apiError(w).Message)

	secret := suite.provisionOTP()

	w = suite.request(http.MethodPost, "/api/v1/auth/otp/reset", suite.aliceToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("OTP Reset Successfully for user", suite.message(w))

	code := suite.code(secret)
	w = suite.request(http.MethodPost, "/api/v1/auth/otp/verify", suite.aliceToken, gin.H{"otp": code})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal("OTP Verified", suite.message(w))

	w = suite.request(http.MethodPost, "/api/v1/auth/otp/verify", suite.aliceToken, gin.H{"otp": code})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("Error Verifying One Time Password", suite.apiError(w).Message)
}

func (suite *HandlersTestSuite) TestOTPTwoFactorToggle() {
	w := suite.request(http.MethodPost, "/api/v1/auth/otp/2fa", suite.aliceToken, gin.H{"enabled": true})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("QR Code not found for user.", suite.apiError(w).Message)

	suite.provisionOTP()

	w = suite.request(http.MethodPost, "/api/v1/auth/otp/2fa", suite.aliceToken, gin.H{"enabled": true})
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("2FA Activated", suite.message(w))

	var user models.User
	suite.Require().NoError(suite.db.First(&user, "id = ?", suite.alice.ID).Error)
	suite.True(user.TwoFactorEnabled)

	w = suite.request(http.MethodPost, "/api/v1/auth/otp/2fa", suite.aliceToken, gin.H{"bool": false})
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("2FA Disabled", suite.message(w))

	w = suite.request(http.MethodPost, "/api/v1/auth/otp/2fa", suite.aliceToken, gin.H{})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestOTPDisableClearsSecret() {
	secret := suite.provisionOTP()

	w := suite.request(http.MethodPost, "/api/v1/auth/otp/disable", suite.aliceToken, gin.H{"otp": "000000"})
	if suite.code(secret) != "000000" {
		suite.Equal(http.StatusBadRequest, w.Code)
	}

	w = suite.request(http.MethodPost, "/api/v1/auth/otp/disable", suite.aliceToken, gin.H{"otp": suite.code(secret)})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal("Two Factor Authentication Disabled", suite.message(w))

	var user models.User
	suite.Require().NoError(suite.db.First(&user, "id = ?", suite.alice.ID).Error)
	suite.Empty(user.OTPBase32)
	suite.Empty(user.QRCode)
	suite.False(user.TwoFactorEnabled)
}

func (suite *HandlersTestSuite) TestOTPLogin() {
	w := suite.request(http.MethodPost, "/api/v1/auth/otp/login", "", gin.H{"email": "alice@example.com"})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("Both username and OTP code are required.", suite.apiError(w).Message)

	w = suite.request(http.MethodPost, "/api/v1/auth/otp/login", "", gin.H{"email": "ghost@example.com", "otp": "123456"})
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("User does not exist.", suite.apiError(w).Message)

	secret := suite.provisionOTP()
	w = suite.request(http.MethodPost, "/api/v1/auth/otp/reset", suite.aliceToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	code := suite.code(secret)
	w = suite.request(http.MethodPost, "/api/v1/auth/otp/login", "", gin.H{"email": "alice@example.com", "otp": code})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var tokens dto.TokenResponse
	suite.results(w, &tokens)
	suite.Equal(suite.aliceToken, tokens.AccessToken)

	w = suite.request(http.MethodPost, "/api/v1/auth/otp/login", "", gin.H{"email": "alice@example.com", "otp": code})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("Invalid OTP code.", suite.apiError(w).Message)
}
