package controllers

import (
	"context"
	"net/http"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/api/responses"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/config"
	pkgerrors "github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/errors"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ShopCo-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, db, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ShopCo-Env", cfg.App.Env)

		checks := map[string]pinger{"db": db, "redis": cache}
		for name, dep := range checks {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unreachable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
