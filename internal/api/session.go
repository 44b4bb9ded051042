package api

import (
	"context"
	"net/http"
	"strings"
)

// UserData returns the email of the operator owning the session.
func (c *Client) UserData(ctx context.Context) (string, error) {
	var resp struct {
		Email string `json:"email"`
		Error string `json:"error"`
	}
	code, err := c.GetJSON(ctx, "/get_user_data", nil, &resp)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK || resp.Email == "" {
		msg := resp.Error
		if msg == "" {
			msg = "user not authenticated"
		}
		return "", &BackendError{Op: "get_user_data", StatusCode: code, Message: msg}
	}
	return resp.Email, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	var resp Envelope
	code, err := c.PostJSON(ctx, "/logout", nil, &resp)
	if err != nil {
		return err
	}
	if err := resp.check("logout", code); err != nil {
		return err
	}
	c.clearIDToken()
	return nil
}

// OperatorName is the local part of email, used as the USER form field.
func OperatorName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
