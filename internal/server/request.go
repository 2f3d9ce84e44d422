package server

import (
	"github.com/portfolify/shipd/internal/deploy"
)

// DeployRequest is the body of POST /api/deploy.
type DeployRequest = deploy.Config

// SubmitRequest is the body of POST /api/deployments.
type SubmitRequest struct {
	deploy.Config
	CallbackURL string `json:"callbackUrl,omitempty" validate:"omitempty,url"`
}

// ConnectionRequest is the body of PUT /api/deploy.
type ConnectionRequest struct {
	Provider string `json:"provider" validate:"required,oneof=vercel netlify github-pages download"`
}
