// Package domain
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleMember  Role = "MEMBER"
	RoleManager Role = "MANAGER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleManager:
		return true
	}
	return false
}

func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return r, nil
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*r = ""
		return nil
	}
	parsed, err := ParseRole(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type UserProfile struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

type ProfileUpdate struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,emailshape"`
}

// FormFrom pre-fills a profile form from the stored user.
func FormFrom(u *UserProfile) ProfileUpdate {
	if u == nil {
		return ProfileUpdate{}
	}
	return ProfileUpdate{FullName: u.FullName, Email: u.Email}
}
