package i18n

import "net/http"

// Middleware injects a localizer into every request context. The "lang"
// query parameter wins over the Accept-Language header.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var prefs []string
		if q := r.URL.Query().Get("lang"); q != "" {
			prefs = append(prefs, q)
		}
		if h := r.Header.Get("Accept-Language"); h != "" {
			prefs = append(prefs, h)
		}
		ctx := WithLocalizer(r.Context(), NewLocalizer(prefs...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
