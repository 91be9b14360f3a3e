package controllers

import (
	"context"
	"fmt"
	"time"

	"rescuelink/config"
	"rescuelink/middleware"
	"rescuelink/models"
	"rescuelink/realtime"
	"rescuelink/services"
	"rescuelink/utils"
	"rescuelink/views"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// portalView is what every mounted portal offers the registry.
type portalView interface {
	Mount(ctx context.Context, token string) (services.GuardDecision, error)
	Session() *services.Session
	Close()
}

type mountedView struct {
	portal models.Role
	view   portalView
	log    *views.NotificationLog
}

// DepsFactory builds the dependencies of a view about to be mounted for
// session on portal.
type DepsFactory func(portal models.Role, session *services.Session) views.Deps

// ViewRegistry keeps one mounted view per (user, portal). Views idle for
// longer than the TTL are closed.
type ViewRegistry struct {
	views   *cache.Cache
	deps    DepsFactory
	metrics *middleware.Metrics
}

func NewViewRegistry(idleTTL time.Duration, deps DepsFactory, metrics *middleware.Metrics) *ViewRegistry {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	r := &ViewRegistry{
		views:   cache.New(idleTTL, time.Minute),
		deps:    deps,
		metrics: metrics,
	}
	r.views.OnEvicted(func(key string, value interface{}) {
		mv := value.(*mountedView)
		mv.view.Close()
		r.metrics.ViewClosed(mv.portal)
		logrus.WithFields(logrus.Fields{
			"view":   key,
			"portal": mv.portal,
		}).Debug("Portal view closed")
	})
	return r
}

// NewDepsFactory wires views to the shared services. Responder views also
// get the realtime feeds when they are enabled.
func NewDepsFactory(cfg *config.Config, container *services.Container) DepsFactory {
	return func(portal models.Role, session *services.Session) views.Deps {
		deps := views.Deps{Services: container}
		if portal != models.RoleResponder || !cfg.RealtimeEnabled {
			return deps
		}

		deps.Updates = realtime.NewBuffer(0)
		token := realtime.TokenFunc(session.BearerToken)
		deps.Feeds = append(deps.Feeds, realtime.NewSSEFeed(cfg.APIBaseURL+"/sse/missions", deps.Updates, token))
		if cfg.SocketURL != "" {
			deps.Feeds = append(deps.Feeds, realtime.NewSocketFeed(cfg.SocketURL, deps.Updates, token))
		}
		return deps
	}
}

func viewKey(userID models.ID, portal models.Role) string {
	return fmt.Sprintf("%s:%s", userID, portal)
}

// acquire returns the caller's mounted view for portal, mounting one with
// build if needed. A view mounted with a different token is replaced.
func acquire[V portalView](r *ViewRegistry, c *gin.Context, portal models.Role, build func(views.Deps) V) (V, *views.NotificationLog, error) {
	var zero V
	session, ok := middleware.GetSession(c)
	if !ok {
		return zero, nil, utils.NewUnauthenticatedError("No active session")
	}
	token := middleware.GetToken(c)
	key := viewKey(session.UserID(), portal)

	if value, found := r.views.Get(key); found {
		mv := value.(*mountedView)
		if current, err := mv.view.Session().BearerToken(c.Request.Context()); err == nil && current == utils.StripBearer(token) {
			r.views.SetDefault(key, mv)
			return mv.view.(V), mv.log, nil
		}
		r.views.Delete(key)
	}

	log := views.NewNotificationLog()
	deps := r.deps(portal, session)
	deps.Notifier = log
	view := build(deps)

	decision, err := view.Mount(c.Request.Context(), token)
	if decision.Outcome != services.GuardAllow {
		view.Close()
		return zero, log, err
	}
	r.metrics.ViewMounted(portal)

	if addErr := r.views.Add(key, &mountedView{portal: portal, view: view, log: log}, cache.DefaultExpiration); addErr != nil {
		// A concurrent request mounted the same view first.
		view.Close()
		r.metrics.ViewClosed(portal)
		if value, found := r.views.Get(key); found {
			mv := value.(*mountedView)
			return mv.view.(V), mv.log, nil
		}
		return zero, log, utils.ErrViewClosed
	}

	logrus.WithFields(logrus.Fields{
		"user_id": session.UserID(),
		"portal":  portal,
	}).Info("Portal view mounted")
	return view, log, err
}

// Drop closes every view held for userID.
func (r *ViewRegistry) Drop(userID models.ID) {
	for _, portal := range []models.Role{models.RoleCitizen, models.RoleResponder, models.RoleCoordinator} {
		r.views.Delete(viewKey(userID, portal))
	}
}

// Len is the number of mounted views.
func (r *ViewRegistry) Len() int {
	return r.views.ItemCount()
}

// Close unmounts every view.
func (r *ViewRegistry) Close() {
	for key := range r.views.Items() {
		r.views.Delete(key)
	}
}

// respond renders the outcome of a view action together with the
// notifications it produced.
func respond(c *gin.Context, r *ViewRegistry, portal models.Role, log *views.NotificationLog, message string, data interface{}, err error) {
	var notes []models.Notification
	if log != nil {
		notes = log.Drain()
	}
	r.metrics.ObserveNotifications(portal, notes)

	if err != nil {
		utils.ServiceErrorResponse(c, err, notes)
		return
	}
	utils.SuccessResponse(c, message, data, notes)
}

func idParam(c *gin.Context, name string) (models.ID, error) {
	id, err := models.ParseID(c.Param(name))
	if err != nil {
		return 0, utils.NewBadRequestError(fmt.Sprintf("Invalid %s", name))
	}
	return id, nil
}

func bindJSON(c *gin.Context, v *utils.ValidationService, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return utils.NewBadRequestError("Invalid request body")
	}
	if v == nil {
		return nil
	}
	return v.Validate(req)
}
