package authapi

import (
	"time"

	"github.com/Lerniqo/user-service/cmd/directory"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetPasswordRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type completeProfileRequest struct {
	FullName string `json:"fullName"`

	// Exactly one group applies, matching the account role.
	GradeLevel    string `json:"gradeLevel,omitempty"`
	LearningGoals string `json:"learningGoals,omitempty"`

	Qualifications string `json:"qualifications,omitempty"`
	ShortBio       string `json:"shortBio,omitempty"`

	Department string `json:"department,omitempty"`
}

type deactivateRequest struct {
	UserID string `json:"userId"`
}

type accountResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	FullName   string    `json:"fullName,omitempty"`
	IsVerified bool      `json:"isVerified"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`

	RoleData any `json:"roleData,omitempty"`
}

type sessionResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User    accountResponse `json:"user"`
	Session sessionResponse `json:"session"`
}

type userEnvelope struct {
	User accountResponse `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type learnerDataResponse struct {
	GradeLevel    string `json:"gradeLevel"`
	LearningGoals string `json:"learningGoals"`
}

type educatorDataResponse struct {
	Qualifications string `json:"qualifications"`
	ShortBio       string `json:"shortBio"`
}

type administratorDataResponse struct {
	Department string `json:"department"`
}

func toAccountResponse(a directory.Account) accountResponse {
	resp := accountResponse{
		ID:         a.ID,
		Email:      a.Email,
		Role:       string(a.Role),
		FullName:   a.FullName,
		IsVerified: a.IsVerified,
		IsActive:   a.IsActive,
		CreatedAt:  a.CreatedAt,
	}
	switch d := a.RoleData.(type) {
	case directory.LearnerData:
		resp.RoleData = learnerDataResponse{GradeLevel: d.GradeLevel, LearningGoals: d.LearningGoals}
	case directory.EducatorData:
		resp.RoleData = educatorDataResponse{Qualifications: d.Qualifications, ShortBio: d.ShortBio}
	case directory.AdministratorData:
		resp.RoleData = administratorDataResponse{Department: d.Department}
	}
	return resp
}
