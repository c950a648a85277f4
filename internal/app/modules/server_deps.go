package modules

import (
	"strings"

	"approvedpremises.io/cas/internal/api/handlers"
	"approvedpremises.io/cas/internal/api/middleware"
	"approvedpremises.io/cas/internal/config"
	"approvedpremises.io/cas/internal/seed"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(cfg *config.Config, infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{
		Pinger: infra.DB.Pool,
		Pools:  infra.Pools,
		Seeds: seed.NewRunner(cfg.Seed.Directory, seed.SQLTransactor(infra.DB.Reference), infra.Reference, infra.Metrics),
	}
	deps.Service.Store = infra.DB.Store
	deps.Service.Reference = infra.Reference
	deps.Service.Schemas = infra.Schemas
	deps.Service.FrontendURL = cfg.Notify.FrontendURL

	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}

// NewJWTConfig converts security settings into middleware configuration.
func NewJWTConfig(cfg config.SecurityConfig) middleware.JWTConfig {
	verificationKeys := make([][]byte, 0, len(cfg.JWTVerificationKeys))
	for _, key := range cfg.JWTVerificationKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		verificationKeys = append(verificationKeys, []byte(key))
	}
	return middleware.JWTConfig{
		SigningKey:       []byte(cfg.JWTSigningKey),
		VerificationKeys: verificationKeys,
		Issuer:           cfg.JWTIssuer,
		ExpiresIn:        cfg.TokenLifetime,
	}
}
