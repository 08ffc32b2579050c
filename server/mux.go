package server

import (
	"net/http"
	"sort"
	"strings"
)

// Mux is a Router over http.ServeMux that dispatches on the method too.
type Mux struct {
	mux     *http.ServeMux
	methods map[string]map[string]http.Handler
}

func NewMux() *Mux {
	return &Mux{mux: http.NewServeMux(), methods: map[string]map[string]http.Handler{}}
}

func (m *Mux) MethodFunc(method, pattern string, hdl http.Handler) {
	byMethod, ok := m.methods[pattern]
	if !ok {
		byMethod = map[string]http.Handler{}
		m.methods[pattern] = byMethod
		m.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			h, ok := byMethod[r.Method]
			if !ok {
				allowed := make([]string, 0, len(byMethod))
				for k := range byMethod {
					allowed = append(allowed, k)
				}
				sort.Strings(allowed)
				w.Header().Set("Allow", strings.Join(allowed, ", "))
				http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
	byMethod[method] = hdl
}

func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}
