package gateway

import (
	"context"
	"errors"
)

// LoginRequest identifies the member by exactly one of Email, Phone or
// MemberID. Password is the already hashed password.
type LoginRequest struct {
	Email    string
	Phone    string
	MemberID string
	Password string
	DeviceID string
}

// LoginResult is the credential pair issued by login and registration.
type LoginResult struct {
	AccessToken string
	MemberID    string
}

// RegisterRequest carries the registration form. Passwords are hashed.
type RegisterRequest struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password1 string
	Password2 string
	Vcode     string
}

// ResetPasswordRequest completes a forgot-password flow.
type ResetPasswordRequest struct {
	MemberID  string
	Password1 string
	Password2 string
	Vcode     string
}

// ChangePasswordRequest changes the password of the logged in member.
type ChangePasswordRequest struct {
	OldPassword string
	Password1   string
	Password2   string
}

var errEmptyCredentials = errors.New("login response without credentials")

// Login exchanges an identifier and hashed password for an access token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	form := map[string]string{"psd": req.Password}
	switch {
	case req.Email != "":
		form["email"] = req.Email
	case req.Phone != "":
		form["phoneNum"] = req.Phone
	case req.MemberID != "":
		form["memberId"] = req.MemberID
	}
	if req.DeviceID != "" {
		form["deviceId"] = req.DeviceID
	}
	var data loginData
	if err := c.postForm(ctx, PathLogin, form, &data); err != nil {
		return LoginResult{}, err
	}
	if data.AccessToken == "" || data.MemberID == "" {
		return LoginResult{}, &TransportError{Op: PathLogin, Err: errors.Join(ErrMalformedResponse, errEmptyCredentials)}
	}
	return LoginResult{AccessToken: data.AccessToken, MemberID: data.MemberID}, nil
}

// Register creates an account. A verification code must have been sent to
// the email first (SendVcode).
func (c *Client) Register(ctx context.Context, req RegisterRequest) (LoginResult, error) {
	form := map[string]string{
		"firstName": req.FirstName,
		"lastName":  req.LastName,
		"email":     req.Email,
		"phone":     req.Phone,
		"psd1":      req.Password1,
		"psd2":      req.Password2,
		"vcode":     req.Vcode,
	}
	var data loginData
	if err := c.postForm(ctx, PathRegister, form, &data); err != nil {
		return LoginResult{}, err
	}
	if data.AccessToken == "" || data.MemberID == "" {
		return LoginResult{}, &TransportError{Op: PathRegister, Err: errors.Join(ErrMalformedResponse, errEmptyCredentials)}
	}
	return LoginResult{AccessToken: data.AccessToken, MemberID: data.MemberID}, nil
}

// SendVcode asks the backend to email a verification code.
func (c *Client) SendVcode(ctx context.Context, email, flag string) error {
	return c.postForm(ctx, PathSendVcode, map[string]string{"email": email, "flag": flag}, nil)
}

// ForgotPassword emails a reset code. The backend may return the member id
// the reset must be addressed to.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var data struct {
		MemberID string `json:"memberId"`
	}
	if err := c.postForm(ctx, PathForgetPassword, map[string]string{"email": email}, &data); err != nil {
		return "", err
	}
	return data.MemberID, nil
}

func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.postForm(ctx, PathResetPassword, map[string]string{
		"memberId": req.MemberID,
		"psd1":     req.Password1,
		"psd2":     req.Password2,
		"vcode":    req.Vcode,
	}, nil)
}

func (c *Client) ChangePassword(ctx context.Context, auth Auth, req ChangePasswordRequest) error {
	return c.postForm(ctx, PathChangePassword, withAuth(auth, map[string]string{
		"oldPsd": req.OldPassword,
		"psd1":   req.Password1,
		"psd2":   req.Password2,
	}), nil)
}

func (c *Client) Logout(ctx context.Context, auth Auth) error {
	return c.postForm(ctx, PathLogout, auth.params(), nil)
}
