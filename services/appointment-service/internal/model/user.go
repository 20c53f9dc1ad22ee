package model

type User struct {
	ID       string
	Name     string
	Email    string
	Provider bool
	AvatarID string
}
