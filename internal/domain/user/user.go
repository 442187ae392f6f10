package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired   = errors.New("user: id is required")
	ErrNameRequired = errors.New("user: name is required")
	ErrNotFound     = errors.New("user: not found")
)

type ID string

// User is the slim identity record the conversational core needs: enough to
// verify that a referenced participant exists. Credential issuance and
// profile data belong to other subsystems.
type User struct {
	ID        ID
	Name      string
	CreatedAt time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	Save(ctx context.Context, u *User) error
}

func New(id ID, name string, createdAt time.Time) (*User, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, ErrIDRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	return &User{ID: id, Name: name, CreatedAt: createdAt.UTC()}, nil
}
