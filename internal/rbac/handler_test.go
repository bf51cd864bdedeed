package rbac_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"

	rbacDatamodel "github.com/frahmantamala/property-evaluation/internal/core/datamodel/rbac"
	"github.com/frahmantamala/property-evaluation/internal/rbac"
	rbacPostgres "github.com/frahmantamala/property-evaluation/internal/rbac/postgres"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = Describe("RBAC Handler Integration", func() {
	var (
		service *rbac.Service
		router  *chi.Mux
	)

	do := func(method, target string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, target, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&rbacDatamodel.User{},
			&rbacDatamodel.Role{},
			&rbacDatamodel.Permission{},
			&rbacDatamodel.UserRole{},
			&rbacDatamodel.RolePermission{},
		)
		Expect(err).NotTo(HaveOccurred())

		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = rbac.NewService(rbacPostgres.NewRepository(db), MockHasher{}, slogger)
		handler := rbac.NewHandler(service)

		router = chi.NewRouter()
		router.Post("/users", handler.CreateUser)
		router.Get("/users/{id}", handler.GetUser)
		router.Post("/users/{id}/roles", handler.AssignRole)
		router.Delete("/users/{id}/roles/{roleID}", handler.RemoveRole)
		router.Get("/users/{id}/permissions", handler.GetUserPermissions)
		router.Post("/roles", handler.CreateRole)
		router.Post("/roles/{id}/permissions", handler.AssignPermission)
		router.Post("/permissions", handler.CreatePermission)
		router.Post("/permissions/check", handler.CheckPermission)
	})

	Describe("POST /users", func() {
		It("should create a user and hide the password hash", func() {
			w := do(http.MethodPost, "/users", rbac.CreateUserDTO{
				Username: "alice",
				Email:    "alice@example.com",
				Password: "password123",
			})
			Expect(w.Code).To(Equal(http.StatusCreated))

			var user rbac.User
			Expect(json.NewDecoder(w.Body).Decode(&user)).To(Succeed())
			Expect(user.ID).To(BeNumerically(">", 0))
			Expect(w.Body.String()).NotTo(ContainSubstring("password"))
		})

		It("should return 409 for a duplicate username", func() {
			first := do(http.MethodPost, "/users", rbac.CreateUserDTO{
				Username: "alice",
				Email:    "alice@example.com",
				Password: "password123",
			})
			Expect(first.Code).To(Equal(http.StatusCreated))

			second := do(http.MethodPost, "/users", rbac.CreateUserDTO{
				Username: "alice",
				Email:    "other@example.com",
				Password: "password123",
			})
			Expect(second.Code).To(Equal(http.StatusConflict))
		})

		It("should return 400 for a validation failure", func() {
			w := do(http.MethodPost, "/users", rbac.CreateUserDTO{
				Username: "al",
				Email:    "alice@example.com",
				Password: "password123",
			})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /users/{id}", func() {
		It("should return 404 for an unknown user", func() {
			w := do(http.MethodGet, "/users/999", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("should return 400 for a malformed id", func() {
			w := do(http.MethodGet, "/users/abc", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("role assignment routes", func() {
		var (
			user *rbac.User
			role *rbac.Role
		)

		BeforeEach(func() {
			var err error
			user, err = service.CreateUser(rbac.CreateUserDTO{
				Username: "alice",
				Email:    "alice@example.com",
				Password: "password123",
			})
			Expect(err).NotTo(HaveOccurred())
			role, err = service.CreateRole(rbac.CreateRoleDTO{Name: "Viewer"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should assign a role then report a conflict on repeat", func() {
			target := "/users/" + itoa(user.ID) + "/roles"
			first := do(http.MethodPost, target, rbac.AssignRoleDTO{RoleID: role.ID})
			Expect(first.Code).To(Equal(http.StatusCreated))

			second := do(http.MethodPost, target, rbac.AssignRoleDTO{RoleID: role.ID})
			Expect(second.Code).To(Equal(http.StatusConflict))
		})

		It("should remove an assignment once", func() {
			_, err := service.AssignRoleToUser(rbac.AssignRoleDTO{UserID: user.ID, RoleID: role.ID})
			Expect(err).NotTo(HaveOccurred())

			target := "/users/" + itoa(user.ID) + "/roles/" + itoa(role.ID)
			Expect(do(http.MethodDelete, target, nil).Code).To(Equal(http.StatusNoContent))
			Expect(do(http.MethodDelete, target, nil).Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /permissions/check", func() {
		It("should answer true for a granted permission and false otherwise", func() {
			user, err := service.CreateUser(rbac.CreateUserDTO{
				Username: "alice",
				Email:    "alice@example.com",
				Password: "password123",
			})
			Expect(err).NotTo(HaveOccurred())
			role, err := service.CreateRole(rbac.CreateRoleDTO{Name: "Viewer"})
			Expect(err).NotTo(HaveOccurred())
			permission, err := service.CreatePermission(rbac.CreatePermissionDTO{
				Action:   "read",
				Resource: "collateral_evaluation",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(service.AssignPermissionToRole(rbac.AssignPermissionDTO{
				RoleID:       role.ID,
				PermissionID: permission.ID,
			})).To(Succeed())
			_, err = service.AssignRoleToUser(rbac.AssignRoleDTO{UserID: user.ID, RoleID: role.ID})
			Expect(err).NotTo(HaveOccurred())

			granted := do(http.MethodPost, "/permissions/check", rbac.PermissionCheckDTO{
				UserID:   user.ID,
				Action:   "read",
				Resource: "collateral_evaluation",
			})
			Expect(granted.Code).To(Equal(http.StatusOK))
			var response rbac.PermissionCheckResponse
			Expect(json.NewDecoder(granted.Body).Decode(&response)).To(Succeed())
			Expect(response.HasPermission).To(BeTrue())
			Expect(response.RequiredPermission).To(Equal("read:collateral_evaluation"))

			// A denial is still a well-formed 200 answer.
			denied := do(http.MethodPost, "/permissions/check", rbac.PermissionCheckDTO{
				UserID:   user.ID,
				Action:   "authorize",
				Resource: "collateral_evaluation",
			})
			Expect(denied.Code).To(Equal(http.StatusOK))
			response = rbac.PermissionCheckResponse{}
			Expect(json.NewDecoder(denied.Body).Decode(&response)).To(Succeed())
			Expect(response.HasPermission).To(BeFalse())
		})
	})
})

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
