package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/cradoe/skypay/internal/request"
	"github.com/cradoe/skypay/internal/response"
	"github.com/cradoe/skypay/internal/validator"

	"github.com/cradoe/gopass"
	"github.com/pascaldekloe/jwt"
)

const reviewerTokenTTL = 12 * time.Hour

// HandleAuthLogin issues a reviewer token. Applicants never log in: they are
// identified by their applicant id and verified contact channels.
func (h *RouteHandler) HandleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email     string              `json:"email"`
		Password  string              `json:"password"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	input.Validator.Check(validator.NotBlank(input.Email), "Email is required")
	input.Validator.Check(validator.IsEmail(input.Email), "Must be a valid email address")
	input.Validator.Check(validator.NotBlank(input.Password), "Password is required")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	reviewer, found, err := h.DB.Reviewer().GetByEmail(r.Context(), input.Email)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	if found {
		passwordMatches, err := gopass.ComparePasswordAndHash(input.Password, reviewer.HashedPassword)
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
			return
		}

		input.Validator.Check(passwordMatches, "Incorrect email/password")
	} else {
		input.Validator.AddError("Incorrect email/password")
	}

	if input.Validator.HasErrors() {
		h.Logger.Warn("failed reviewer login", "email", input.Email)
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	var claims jwt.Claims
	claims.Subject = reviewer.ID

	now := time.Now()
	expiry := now.Add(reviewerTokenTTL)
	claims.Issued = jwt.NewNumericTime(now)
	claims.NotBefore = jwt.NewNumericTime(now)
	claims.Expires = jwt.NewNumericTime(expiry)

	claims.Issuer = h.Config.BaseURL
	claims.Audiences = []string{h.Config.BaseURL}

	jwtBytes, err := claims.HMACSign(jwt.HS256, []byte(h.Config.Jwt.SecretKey))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.Logger.Info("reviewer logged in", "reviewer_id", reviewer.ID)

	data := map[string]string{
		"auth_token":   string(jwtBytes),
		"token_expiry": expiry.Format(time.RFC3339),
	}
	message := "Login successful"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
