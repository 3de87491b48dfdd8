package account

// User is an account record. PasswordHash never leaves the service layer.
type User struct {
	ID           int64   `json:"-"`
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	PasswordHash string  `json:"-"`
	RecoveryCode string  `json:"recoveryCode"`
	AvatarURL    *string `json:"avatarUrl"`
}
