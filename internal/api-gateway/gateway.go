package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", to)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// NewHandler monta o roteamento do gateway:
// /api/line/* -> line-provider, /api/bets/* -> bet-maker
func NewHandler(log *zap.Logger, lineURL, betURL string) (http.Handler, error) {
	line, err := rp(lineURL)
	if err != nil {
		return nil, err
	}
	bet, err := rp(betURL)
	if err != nil {
		return nil, err
	}
	for name, p := range map[string]*httputil.ReverseProxy{"line-provider": line, "bet-maker": bet} {
		upstream := name
		p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("upstream unavailable", zap.String("upstream", upstream), zap.String("path", r.URL.Path), zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
		}
	}

	mux := http.NewServeMux()

	// eventos (ex.: /api/line/events -> line-provider /events)
	mux.Handle("/api/line/", http.StripPrefix("/api/line", line))

	// apostas (ex.: /api/bets/bet -> bet-maker /bet)
	mux.Handle("/api/bets/", http.StripPrefix("/api/bets", bet))

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(mux), nil
}
