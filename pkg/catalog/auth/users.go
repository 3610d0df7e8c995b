package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a username or password does not match
var ErrInvalidCredentials = errors.New("unable to log in with provided credentials")

// User is an identity known to the server
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Staff        bool
}

// Directory holds the configured users, keyed by username
type Directory struct {
	users map[string]*User
}

// NewDirectory builds a directory from users. IDs of zero are assigned in order.
func NewDirectory(users ...*User) (*Directory, error) {
	d := &Directory{users: make(map[string]*User, len(users))}
	for i, u := range users {
		if u.Username == "" {
			return nil, fmt.Errorf("user %d has no username", i+1)
		}
		if _, exists := d.users[u.Username]; exists {
			return nil, fmt.Errorf("duplicate user %q", u.Username)
		}
		if u.ID == 0 {
			u.ID = int64(i + 1)
		}
		d.users[u.Username] = u
	}
	return d, nil
}

// ParseUsers reads a comma separated list of "name:bcrypthash[:staff]" entries.
func ParseUsers(raw string) (*Directory, error) {
	var users []*User
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid user entry %q (use name:bcrypthash[:staff])", entry)
		}
		u := &User{Username: parts[0], PasswordHash: parts[1]}
		if len(parts) == 3 {
			switch parts[2] {
			case "staff":
				u.Staff = true
			case "user", "":
			default:
				return nil, fmt.Errorf("invalid role %q for user %q", parts[2], parts[0])
			}
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("user %q: password is not a bcrypt hash: %w", u.Username, err)
		}
		users = append(users, u)
	}
	return NewDirectory(users...)
}

// Authenticate checks the password and returns the matching user.
func (d *Directory) Authenticate(username, password string) (*User, error) {
	u, ok := d.users[username]
	if !ok {
		// keep timing close to the found case
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoO5cBZPkHqV6xWS2E1tmaJYb5M4tUJN5K"), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Lookup returns the user with the given name.
func (d *Directory) Lookup(username string) (*User, bool) {
	u, ok := d.users[username]
	return u, ok
}

// Usernames returns every configured username in sorted order.
func (d *Directory) Usernames() []string {
	names := make([]string, 0, len(d.users))
	for name := range d.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HashPassword produces a bcrypt hash suitable for AUTH_USERS.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
