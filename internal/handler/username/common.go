package username

import (
	"time"

	"accountguard/internal/model/account"
)

// UserInfo 用户信息
type UserInfo struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email,omitempty"`
	Provider      string `json:"provider,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	CreatedAt     string `json:"createdAt"`
}

func toUserInfo(user *account.User) UserInfo {
	return UserInfo{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		Provider:      user.Provider,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
	}
}
