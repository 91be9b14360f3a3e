package services

import (
	"context"

	"rescuelink/models"
)

type UserService struct {
	backend *BackendClient
}

func NewUserService(backend *BackendClient) *UserService {
	return &UserService{backend: backend}
}

// ListUsers reads the user directory.
func (us *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := us.backend.Get(ctx, "/user", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListResponders filters the directory down to responders.
func (us *UserService) ListResponders(ctx context.Context) ([]models.User, error) {
	users, err := us.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return FilterResponders(users), nil
}

func FilterResponders(users []models.User) []models.User {
	responders := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.IsResponder() {
			responders = append(responders, u)
		}
	}
	return responders
}

// AvailableResponders keeps responders whose status is AVAILABLE.
func AvailableResponders(responders []models.User) []models.User {
	available := make([]models.User, 0, len(responders))
	for _, r := range responders {
		if r.IsAvailable() {
			available = append(available, r)
		}
	}
	return available
}
