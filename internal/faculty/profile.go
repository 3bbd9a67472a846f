package faculty

import (
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/facultyattendance/internal/keys"
)

type ID string

func NewID() ID {
	return ID(gonanoid.Must())
}

// Profile is the authenticated user of the dashboard.
type Profile struct {
	ID          ID     `json:"id" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"required"`
	FacultyID   string `json:"facultyId" validate:"required"`
	Department  string `json:"department"`
}

func (p Profile) Encode(key *keys.Key) (*EncodedProfile, error) {
	encoded, err := key.Encrypt([]byte(p.Email))
	if err != nil {
		return nil, err
	}
	return &EncodedProfile{
		ID:          p.ID,
		Email:       encoded,
		DisplayName: p.DisplayName,
		FacultyID:   p.FacultyID,
		Department:  p.Department,
	}, nil
}

// EncodedProfile is a profile with the e-mail address encrypted at rest.
type EncodedProfile struct {
	ID          ID     `json:"id"`
	Email       []byte `json:"email"`
	DisplayName string `json:"displayName"`
	FacultyID   string `json:"facultyId"`
	Department  string `json:"department"`
}

func (e EncodedProfile) Decode(key *keys.Key) (*Profile, error) {
	email, err := key.Decrypt(e.Email)
	if err != nil {
		return nil, err
	}
	return &Profile{
		ID:          e.ID,
		Email:       string(email),
		DisplayName: e.DisplayName,
		FacultyID:   e.FacultyID,
		Department:  e.Department,
	}, nil
}
