package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/rs/zerolog/log"
)

// permissionMetricsList gates the metrics panel on the dashboard
const permissionMetricsList = "metrics.list"

// DashboardPageData contains data for rendering the dashboard
type DashboardPageData struct {
	AppName     string
	User        *users.Profile
	ShowMetrics bool
	Token       TokenInfo
	ExpiresIn   time.Duration
}

// DashboardHandler renders the signed-in user's dashboard (GET /dashboard).
// The user load and the page's own profile call go out together, so an
// expired token costs one refresh for both.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := s.newRequestSession(w, r)
		defer sess.store.Close()

		var (
			wg      sync.WaitGroup
			user    *users.Profile
			loadErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			user, loadErr = sess.auth.LoadUser(ctx)
		}()
		go func() {
			defer wg.Done()
			var me users.Profile
			if err := sess.client.Get(ctx, apiclient.RouteMe, &me); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("dashboard profile call failed")
				return
			}
			log.Ctx(ctx).Debug().Str("email", me.Email).Msg("dashboard profile call")
		}()
		wg.Wait()

		if target := sess.nav.Target(); target != "" && target != RouteDashboard {
			redirectSuccess(w, r, target)
			return
		}
		if loadErr != nil {
			log.Ctx(ctx).Info().Err(loadErr).Msg("dashboard without user")
			redirectSuccess(w, r, RouteEntry)
			return
		}

		data := DashboardPageData{
			AppName:     s.config.GetAppName(),
			User:        user,
			ShowMetrics: user.Can([]string{permissionMetricsList}, nil),
		}
		if info, err := readTokenInfo(sess.client.Token()); err == nil {
			data.Token = info
			data.ExpiresIn = info.ExpiresIn(time.Now())
		} else {
			log.Ctx(ctx).Debug().Err(err).Msg("access token is not a readable jwt")
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := s.dashboardTmpl.Execute(w, data); err != nil {
			log.Ctx(ctx).Err(err).Msg("Failed to render dashboard template")
			http.Error(w, "Failed to render dashboard", http.StatusInternalServerError)
		}
	}
}
