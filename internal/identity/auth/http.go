// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

/*
HTTP delivery layer for the account-security core.

The handler acts as a thin mediation layer between the web and domain services:
  - Protocol: Standard RESTful JSON interface.
  - Security: Session cookie injection, CSRF enforcement, trusted-device cookies.
  - Verification: Enforces strict input validation before passing to the services.

This layer is strictly responsible for transport concerns (status codes, headers, JSON).
*/
package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendora/vendora/internal/platform/constants"
	"github.com/vendora/vendora/internal/platform/middleware"
	requestutil "github.com/vendora/vendora/internal/platform/request"
	"github.com/vendora/vendora/internal/platform/respond"
	"github.com/vendora/vendora/internal/platform/sec"
	"github.com/vendora/vendora/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the authentication and account-security HTTP endpoints.
type Handler struct {
	accounts    *AccountService
	credentials *CredentialValidator
	sessions    *SessionService
	mfa         *MFAManager
	reset       *PasswordResetFlow
	csrf        *sec.CSRFService

	// secureCookies toggles the Secure attribute; disabled only in development.
	secureCookies bool
}

// NewHandler constructs a new [Handler] with its service dependencies.
func NewHandler(
	accounts *AccountService,
	credentials *CredentialValidator,
	sessions *SessionService,
	mfa *MFAManager,
	reset *PasswordResetFlow,
	csrf *sec.CSRFService,
	secureCookies bool,
) *Handler {
	return &Handler{
		accounts:      accounts,
		credentials:   credentials,
		sessions:      sessions,
		mfa:           mfa,
		reset:         reset,
		csrf:          csrf,
		secureCookies: secureCookies,
	}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register        : Creates a new account.
//   - POST /login           : Authenticates and establishes a session.
//   - POST /reset-password  : Forgot-password (request or complete, by payload shape).
//   - POST /verify-email    : Confirms email ownership.
//   - GET  /csrf-token      : Issues a double-submit CSRF token.
//   - GET  /session         : Returns the current session principal.
//   - POST /logout          : Terminates the current session.
//   - POST /logout-all      : Terminates every session of the account.
//   - POST /mfa/verify      : Verifies a second-factor code (setup or login).
//   - POST /mfa/enroll      : Starts MFA enrollment.
//   - POST /mfa/backup-codes: Regenerates the backup code batch.
//   - POST /change-password : Rotates the password of the logged-in account.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Every mutating endpoint in this domain sits behind the double-submit check.
	router.Use(middleware.CSRFProtect(handler.csrf))

	// Public endpoints
	router.Get("/csrf-token", handler.csrfToken)
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/reset-password", handler.resetPassword)
	router.Post("/verify-email", handler.verifyEmail)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/session", handler.session)
		r.Post("/logout", handler.logout)
		r.Post("/logout-all", handler.logoutAll)

		// The verify endpoint must stay reachable from a restricted session,
		// otherwise MFA logins could never complete.
		r.Post("/mfa/verify", handler.mfaVerify)

		r.Group(func(rr chi.Router) {
			rr.Use(middleware.RequireMFACompleted)

			rr.Post("/mfa/enroll", handler.mfaEnroll)
			rr.Post("/mfa/backup-codes", handler.mfaBackupCodes)
			rr.Post("/change-password", handler.changePassword)
		})
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role,omitempty"`
	TenantID *string `json:"tenant_id,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// resetPasswordRequest covers both phases of the recovery flow; the presence
// of Token selects completion over initiation.
type resetPasswordRequest struct {
	Email    string `json:"email,omitempty"`
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type mfaVerifyRequest struct {
	Code           string `json:"code"`
	Type           string `json:"type"` // "setup" or "login"
	RememberDevice bool   `json:"remember_device,omitempty"`
}

type mfaBackupCodesRequest struct {
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// # Public Endpoints

/*
Register handles the creation of a new account.

POST /api/v1/auth/register

Description: Validates input, checks for identity conflicts, and persists
a new account with a pending email verification token.

Request:
  - Body: registerRequest (Email, Password, Role?, TenantID?)

Response:
  - 201: Account: Created account profile
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8).
		MaxLen(FieldPassword, input.Password, 72)

	role := sec.RoleCustomer
	if input.Role != "" {
		parsed, valid := sec.ParseRole(input.Role)
		validator.Custom(FieldRole, !valid, "Unknown role")
		if valid {
			role = parsed
		}
	}

	// Store-scoped roles must carry a tenant; platform admins must not.
	if role == sec.RoleStoreAdmin || role == sec.RoleStaff {
		validator.Custom(FieldTenantID, input.TenantID == nil, "This role requires a tenant")
	}
	if input.TenantID != nil {
		validator.UUID(FieldTenantID, *input.TenantID)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accounts.Register(request.Context(), RegisterInput{
		Email:    input.Email,
		Password: input.Password,
		Role:     role,
		TenantID: input.TenantID,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, account)
}

/*
Login authenticates an account and establishes a session.

POST /api/v1/auth/login

Description: Verifies credentials under the lockout policy and injects the
opaque session cookie. Accounts with MFA enabled receive a restricted session
(mfa_required=true) unless the request carries a valid trusted-device cookie.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: {user, mfa_required}
  - 401: INVALID_CREDENTIALS
  - 403: ACCOUNT_LOCKED or ACCOUNT_NOT_ACTIVE
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.credentials.Validate(request.Context(), input.Email, input.Password, getClientIP(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// MFA gate: a trusted-device grant skips the restricted session.
	mfaVerified := !account.MFAEnabled
	if !mfaVerified {
		if cookie, err := request.Cookie(constants.TrustedDeviceCookieName); err == nil {
			mfaVerified = handler.mfa.IsTrustedDevice(cookie.Value, account.ID)
		}
	}

	session, err := handler.sessions.Create(request.Context(), account, mfaVerified)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookie(writer, session)

	respond.OK(writer, map[string]any{
		FieldUser:        account,
		FieldMFARequired: !mfaVerified,
	})
}

/*
ResetPassword drives both phases of the forgot-password flow.

POST /api/v1/auth/reset-password

Description: A payload carrying only an email initiates recovery; a payload
carrying a token (plus new password) completes it. Initiation always answers
200 with the same message so the endpoint cannot confirm account existence.

Request:
  - Body: resetPasswordRequest (Email) or (Token, Password)

Response:
  - 200: Success message
  - 400: INVALID_OR_EXPIRED_TOKEN, PASSWORD_REUSED, or validation failure
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	// Completion phase: a token is present.
	if input.Token != "" {
		validator := &validate.Validator{}
		validator.Required(FieldPassword, input.Password).
			MinLen(FieldPassword, input.Password, 8).
			MaxLen(FieldPassword, input.Password, 72)

		if err := validator.Err(); err != nil {
			respond.Error(writer, request, err)
			return
		}

		if err := handler.reset.Reset(request.Context(), input.Token, input.Password, getClientIP(request)); err != nil {
			respond.Error(writer, request, err)
			return
		}

		respond.OK(writer, map[string]string{
			FieldMessage: "Password updated successfully",
		})
		return
	}

	// Initiation phase.
	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.reset.Request(request.Context(), input.Email, getClientIP(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "If this email is registered, a reset link has been sent.",
	})
}

/*
VerifyEmail confirms an account's email ownership.

POST /api/v1/auth/verify-email

Request:
  - Body: verifyEmailRequest (Token)

Response:
  - 200: Success: Email verified
  - 400: INVALID_OR_EXPIRED_TOKEN
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input verifyEmailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Token == "" {
		respond.Error(writer, request, validate.RequiredError(FieldToken, "is required"))
		return
	}

	if err := handler.accounts.VerifyEmail(request.Context(), input.Token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Email verified successfully",
	})
}

/*
CSRFToken issues a fresh double-submit token.

GET /api/v1/auth/csrf-token

Description: The token travels twice: in the response body (for the client to
echo in the x-csrf-token header) and in a cookie (sent back automatically).
Mutating requests must present both copies.

Response:
  - 200: {csrf_token, expires_in}
*/
func (handler *Handler) csrfToken(writer http.ResponseWriter, request *http.Request) {
	token, err := handler.csrf.Issue()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(handler.csrf.TTL().Seconds()),
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respond.OK(writer, map[string]any{
		"csrf_token": token,
		"expires_in": int(handler.csrf.TTL().Seconds()),
	})
}

// # Protected Endpoints

/*
Session returns the authenticated principal of the current session.

GET /api/v1/auth/session

Response:
  - 200: Principal snapshot
  - 401: ErrUnauthorized
*/
func (handler *Handler) session(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, principal)
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	_ = handler.sessions.Delete(request.Context(), &Session{
		ID:        principal.SessionID,
		AccountID: principal.AccountID,
		Email:     principal.Email,
		TenantID:  principal.TenantID,
	})

	handler.clearSessionCookie(writer)
	respond.NoContent(writer)
}

/*
LogoutAll terminates every session of the account, including the current one.

POST /api/v1/auth/logout-all

Response:
  - 200: {message, sessions_removed}
*/
func (handler *Handler) logoutAll(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	removed, err := handler.sessions.DeleteAll(request.Context(), principal.AccountID, "logout_all")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearSessionCookie(writer)
	respond.OK(writer, map[string]any{
		FieldMessage:       "All sessions terminated",
		"sessions_removed": removed,
	})
}

/*
MFAEnroll starts multi-factor enrollment for the account.

POST /api/v1/auth/mfa/enroll

Description: Returns the plaintext secret, provisioning URI, and backup codes
exactly once. MFA is not required until the setup code is verified.

Response:
  - 200: Enrollment material
  - 409: ErrConflict: MFA already enabled
*/
func (handler *Handler) mfaEnroll(writer http.ResponseWriter, request *http.Request) {
	accountID, err := requestutil.RequiredAccountID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	enrollment, err := handler.mfa.Enroll(request.Context(), accountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, enrollment)
}

/*
MFAVerify checks a second-factor code.

POST /api/v1/auth/mfa/verify

Description: type=setup completes enrollment; type=login upgrades a restricted
session to fully verified and optionally plants a trusted-device cookie.

Request:
  - Body: mfaVerifyRequest (Code, Type, RememberDevice?)

Response:
  - 200: Success message
  - 400: INVALID_CODE or validation failure
  - 403: ACCOUNT_LOCKED
*/
func (handler *Handler) mfaVerify(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input mfaVerifyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCode, input.Code).
		OneOf(FieldType, input.Type, "setup", "login")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ip := getClientIP(request)

	if input.Type == "setup" {
		if err := handler.mfa.VerifySetup(request.Context(), principal.AccountID, input.Code, ip); err != nil {
			respond.Error(writer, request, err)
			return
		}

		respond.OK(writer, map[string]string{
			FieldMessage: "MFA enabled successfully",
		})
		return
	}

	if _, err := handler.mfa.VerifyLogin(request.Context(), principal.AccountID, input.Code, ip); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if _, err := handler.sessions.MarkMFAVerified(request.Context(), principal.SessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if input.RememberDevice {
		if deviceToken, err := handler.mfa.IssueTrustedDevice(principal.AccountID); err == nil {
			http.SetCookie(writer, &http.Cookie{
				Name:     constants.TrustedDeviceCookieName,
				Value:    deviceToken,
				Path:     "/",
				MaxAge:   int(TrustedDeviceTTL.Seconds()),
				Secure:   handler.secureCookies,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Verification successful",
	})
}

/*
MFABackupCodes regenerates the account's backup code batch.

POST /api/v1/auth/mfa/backup-codes

Description: Requires fresh password confirmation; all previous codes are
invalidated.

Request:
  - Body: mfaBackupCodesRequest (Password)

Response:
  - 200: {backup_codes}
  - 401: INVALID_PASSWORD
  - 409: ErrConflict: MFA not enabled
*/
func (handler *Handler) mfaBackupCodes(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input mfaBackupCodesRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Password == "" {
		respond.Error(writer, request, validate.RequiredError(FieldPassword, "is required"))
		return
	}

	codes, err := handler.mfa.RegenerateBackupCodes(request.Context(), principal.AccountID, input.Password, getClientIP(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"backup_codes": codes,
	})
}

/*
ChangePassword updates the authenticated account's password.

POST /api/v1/auth/change-password

Description: Verifies the current password, enforces the reuse window, and
revokes every other session.

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 200: Success: Password changed
  - 400: PASSWORD_REUSED or validation failure
  - 401: INVALID_PASSWORD
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, 8).
		MaxLen(FieldNewPassword, input.NewPassword, 72)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.accounts.ChangePassword(
		request.Context(),
		principal.AccountID,
		input.CurrentPassword,
		input.NewPassword,
		principal.SessionID,
		getClientIP(request),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password changed successfully",
	})
}

// # Cookie Helpers

// setSessionCookie plants the opaque session cookie.
func (handler *Handler) setSessionCookie(writer http.ResponseWriter, session *Session) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie on the client.
func (handler *Handler) clearSessionCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// getClientIP tries to extract the real IP address of a user over proxy environments.
func getClientIP(request *http.Request) string {

	ip := request.Header.Get(constants.HeaderXRealIP)
	if ip == "" {
		ip = request.Header.Get(constants.HeaderXForwardedFor)
	}

	if ip == "" {
		ip = request.RemoteAddr
	}
	return ip
}
