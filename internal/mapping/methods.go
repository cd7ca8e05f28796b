// Package mapping maps repository resources to routes and keeps the
// per-route cross-origin policies computed when the route table is built.
package mapping

import (
	"net/http"

	"github.com/benvon/datarest/internal/models"
)

// methodOrder is the order methods are reported in.
var methodOrder = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// CollectionMethods returns the methods served on the collection resource.
func CollectionMethods(caps models.Capabilities) []string {
	set := map[string]bool{http.MethodOptions: true}
	if caps.FindAll {
		set[http.MethodGet] = true
		set[http.MethodHead] = true
	}
	if caps.Save {
		set[http.MethodPost] = true
	}
	return ordered(set)
}

// ItemMethods returns the methods served on an item resource.
func ItemMethods(caps models.Capabilities) []string {
	set := map[string]bool{http.MethodOptions: true}
	if caps.FindOne {
		set[http.MethodGet] = true
		set[http.MethodHead] = true
	}
	if caps.Save {
		set[http.MethodPut] = true
		set[http.MethodPatch] = true
	}
	if caps.Delete {
		set[http.MethodDelete] = true
	}
	return ordered(set)
}

// SupportedMethods returns every method a resource exposes across its
// collection and item routes.
func SupportedMethods(caps models.Capabilities) []string {
	set := make(map[string]bool)
	for _, m := range CollectionMethods(caps) {
		set[m] = true
	}
	for _, m := range ItemMethods(caps) {
		set[m] = true
	}
	return ordered(set)
}

func ordered(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for _, m := range methodOrder {
		if set[m] {
			out = append(out, m)
		}
	}
	return out
}
