package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"opsuite/pkg/authclient"
)

// keepers may change stock and warranties. Every staff role can read.
var keepers = []string{authclient.RoleSuperadmin, authclient.RoleAdmin, authclient.RoleWarehouse}

func RegisterRoutes(router *mux.Router, inv *InventoryHandler, war *WarrantyHandler, v authclient.Validator) {
	wh := router.PathPrefix("/warehouse").Subrouter()
	wh.Use(authclient.HTTPMiddleware(v, authclient.StaffRoles...))

	items := wh.PathPrefix("/inventory").Subrouter()
	items.HandleFunc("", inv.List).Methods(http.MethodGet)
	items.HandleFunc("", restrict(inv.Create, keepers...)).Methods(http.MethodPost)
	items.HandleFunc("/low-stock", inv.LowStock).Methods(http.MethodGet)
	items.HandleFunc("/export", inv.Export).Methods(http.MethodGet)
	items.HandleFunc("/{id}", inv.Get).Methods(http.MethodGet)
	items.HandleFunc("/{id}", restrict(inv.Update, keepers...)).Methods(http.MethodPut)
	items.HandleFunc("/{id}", restrict(inv.Delete, keepers...)).Methods(http.MethodDelete)
	items.HandleFunc("/{id}/movements", inv.Movements).Methods(http.MethodGet)
	items.HandleFunc("/{id}/movements", restrict(inv.Move, keepers...)).Methods(http.MethodPost)

	warranties := wh.PathPrefix("/warranties").Subrouter()
	warranties.HandleFunc("", war.List).Methods(http.MethodGet)
	warranties.HandleFunc("", restrict(war.Create, keepers...)).Methods(http.MethodPost)
	warranties.HandleFunc("/{id}", war.Get).Methods(http.MethodGet)
	warranties.HandleFunc("/{id}", restrict(war.Update, keepers...)).Methods(http.MethodPut)
	warranties.HandleFunc("/{id}", restrict(war.Delete, keepers...)).Methods(http.MethodDelete)
	warranties.HandleFunc("/{id}/claims", restrict(war.AddClaim, keepers...)).Methods(http.MethodPost)
	warranties.HandleFunc("/{id}/claims/{claimId}", restrict(war.UpdateClaim, keepers...)).Methods(http.MethodPut)
}
