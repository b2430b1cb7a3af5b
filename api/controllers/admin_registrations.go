package controllers

import (
	"net/http"

	"github.com/angelmondragon/musicportal-backend/api/middleware"
	"github.com/angelmondragon/musicportal-backend/api/responses"
	"github.com/angelmondragon/musicportal-backend/api/validators"
	"github.com/angelmondragon/musicportal-backend/internal/registration"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
)

// AdminRegistrationList returns pending requests, or every request with ?all=true.
func AdminRegistrationList(svc registration.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := validators.ParseQueryBool(r, "all")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var requests []registration.RequestDTO
		if all {
			requests, err = svc.ListAll(r.Context())
		} else {
			requests, err = svc.ListPending(r.Context())
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requests)
	}
}

func AdminRegistrationGet(svc registration.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func AdminRegistrationApprove(svc registration.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Approve(r.Context(), middleware.ActorFromContext(r.Context()), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": id.String(), "status": "approved"})
	}
}

// AdminRegistrationReject deletes the request; the username becomes free again.
func AdminRegistrationReject(svc registration.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Reject(r.Context(), middleware.ActorFromContext(r.Context()), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"id": id.String(), "status": "rejected"})
	}
}
