package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/schoolgate/internal/http/proxy"
)

// AcademicRoutes devuelve las rutas de inscripciones y notas. Todas necesitan
// sesión y tenant; las altas llevan el tenant inyectado en el body.
func AcademicRoutes() []proxy.Route {
	routes := []proxy.Route{
		{Name: "enrollments.list", Method: http.MethodGet, Pattern: "/enrollments", Upstream: "/enrollments"},
		{Name: "enrollments.create", Method: http.MethodPost, Pattern: "/enrollments", Upstream: "/enrollments", Transform: proxy.InjectTenantID},
		{Name: "enrollments.delete", Method: http.MethodDelete, Pattern: "/enrollments/{id}", Upstream: "/enrollments/{id}"},
		{Name: "grades.by_course", Method: http.MethodGet, Pattern: "/courses/{courseId}/grades", Upstream: "/courses/{courseId}/grades"},
		{Name: "grades.by_student", Method: http.MethodGet, Pattern: "/students/{studentId}/grades", Upstream: "/students/{studentId}/grades"},
		{Name: "grades.create", Method: http.MethodPost, Pattern: "/grades", Upstream: "/grades", Transform: proxy.InjectTenantID},
		{Name: "grades.update", Method: http.MethodPut, Pattern: "/grades/{id}", Upstream: "/grades/{id}"},
	}
	for i := range routes {
		routes[i].RequireAuth = true
		routes[i].RequireTenant = true
	}
	return routes
}

// RegisterAcademicRoutes registra /api/enrollments, /api/grades y las
// consultas de notas por curso y alumno.
func RegisterAcademicRoutes(r chi.Router, deps Deps) {
	if deps.Forwarder == nil {
		return
	}
	mount(r, deps.Forwarder, AcademicRoutes())
}
