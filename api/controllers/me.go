package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/musicportal-backend/api/middleware"
	"github.com/angelmondragon/musicportal-backend/api/responses"
	"github.com/angelmondragon/musicportal-backend/internal/accounts"
	"github.com/angelmondragon/musicportal-backend/internal/catalog"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
)

type accountLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

type profileResponse struct {
	Account *accounts.AccountDTO `json:"account"`
	Songs   []catalog.SongDTO    `json:"songs"`
}

// MeProfile returns the signed-in account together with the songs it owns.
func MeProfile(accts accountLookup, songs catalog.SongService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFromContext(r.Context())
		if actor.IsAnonymous() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		account, err := accts.FindByID(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owned, err := songs.ListByOwner(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profileResponse{Account: accounts.FromModel(account), Songs: owned})
	}
}
