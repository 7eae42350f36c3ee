package dto

import (
	"time"

	"rcms/internal/entity"
)

type AdminResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Location      *string   `json:"location,omitempty"`
	CentreName    *string   `json:"centreName,omitempty"`
	CreditBalance float64   `json:"creditBalance"`
	CreatedAt     time.Time `json:"createdAt"`
}

func AdminResponseFromEntity(user *entity.User) AdminResponse {
	return AdminResponse{
		ID:            user.ID.String(),
		Name:          user.Name,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Location:      user.Location,
		CentreName:    user.CentreName,
		CreditBalance: user.CreditBalance,
		CreatedAt:     user.CreatedAt,
	}
}

func AdminResponsesFromEntities(users []entity.User) []AdminResponse {
	responses := make([]AdminResponse, 0, len(users))
	for i := range users {
		responses = append(responses, AdminResponseFromEntity(&users[i]))
	}
	return responses
}
