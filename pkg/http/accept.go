package http

import (
	"net/http"
	"sort"

	"github.com/golang/gddo/httputil/header"
)

// negotiateContentType picks whichever of the offered content types
// the request's Accept header rates highest. Ties go to the earlier
// offer. With no Accept header the first offer wins; with an Accept
// header that matches none of the offers, the result is "".
func negotiateContentType(r *http.Request, offers []string) string {
	specs := header.ParseAccept(r.Header, "Accept")
	if len(specs) == 0 {
		return offers[0]
	}

	var acceptable []header.AcceptSpec
	for _, spec := range specs {
		if rank(offers, spec.Value) < len(offers) {
			acceptable = append(acceptable, spec)
		}
	}
	if len(acceptable) == 0 {
		return ""
	}
	sort.SliceStable(acceptable, func(i, j int) bool {
		if acceptable[i].Q != acceptable[j].Q {
			return acceptable[i].Q > acceptable[j].Q
		}
		return rank(offers, acceptable[i].Value) < rank(offers, acceptable[j].Value)
	})
	return acceptable[0].Value
}

// rank is the position of a content type among the offers, or
// len(offers) if it is not offered at all, so it sorts last.
func rank(offers []string, contentType string) int {
	for i, o := range offers {
		if o == contentType {
			return i
		}
	}
	return len(offers)
}
