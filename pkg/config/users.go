package config

import (
	"crypto/subtle"
	"slices"
	"strings"

	"github.com/lightningdb/chililog/pkg/abstract"
	"go.ytsaurus.tech/library/go/core/xerrors"
	"golang.org/x/crypto/bcrypt"
)

// User is a principal of the gateway. PasswordHash is a bcrypt hash; Password is accepted for
// development setups and compared as is.
type User struct {
	Name         string   `yaml:"name" log:"true"`
	Password     string   `yaml:"password"`
	PasswordHash string   `yaml:"password_hash"`
	Roles        []string `yaml:"roles" log:"true"`
}

func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return xerrors.New("user name is empty")
	}
	if u.Password == "" && u.PasswordHash == "" {
		return xerrors.Errorf("user %s has neither password nor password_hash", u.Name)
	}
	if u.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return xerrors.Errorf("user %s: invalid password_hash: %w", u.Name, err)
		}
	}
	return nil
}

func (u *User) checkPassword(password string) bool {
	if u.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1
}

// Users authorizes gateway requests against the configured users.
type Users struct {
	byName map[string]*User
}

var _ abstract.Authorizer = (*Users)(nil)

func NewUsers(users []User) *Users {
	res := &Users{byName: make(map[string]*User, len(users))}
	for i := range users {
		u := users[i]
		res.byName[u.Name] = &u
	}
	return res
}

func (u *Users) Authenticate(username, password string) bool {
	user, ok := u.byName[username]
	if !ok {
		return false
	}
	return user.checkPassword(password)
}

// HasRole is true for the role itself, and for every role when the user is a system administrator.
func (u *Users) HasRole(username, role string) bool {
	user, ok := u.byName[username]
	if !ok {
		return false
	}
	return slices.Contains(user.Roles, role) || slices.Contains(user.Roles, abstract.SystemAdministratorRole)
}
