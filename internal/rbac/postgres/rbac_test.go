package postgres_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	rbacDatamodel "github.com/frahmantamala/property-evaluation/internal/core/datamodel/rbac"
	"github.com/frahmantamala/property-evaluation/internal/rbac"
	rbacPostgres "github.com/frahmantamala/property-evaluation/internal/rbac/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestRBACPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "RBAC Postgres Suite")
}

type sqliteHasher struct{}

func (sqliteHasher) HashPassword(password string) (string, error) {
	return "hashed:" + password, nil
}

var _ = Describe("RBAC PostgreSQL Repository", func() {
	var (
		db   *gorm.DB
		repo rbac.RepositoryAPI
	)

	newUser := func(username, email string) *rbacDatamodel.User {
		user := &rbacDatamodel.User{
			Username:     username,
			Email:        email,
			PasswordHash: "hash",
			IsActive:     true,
		}
		Expect(repo.CreateUser(user)).To(Succeed())
		return user
	}

	newRole := func(name string) *rbacDatamodel.Role {
		role := &rbacDatamodel.Role{Name: name}
		Expect(repo.CreateRole(role)).To(Succeed())
		return role
	}

	newPermission := func(action, resource string) *rbacDatamodel.Permission {
		permission := &rbacDatamodel.Permission{Action: action, Resource: resource}
		Expect(repo.CreatePermission(permission)).To(Succeed())
		return permission
	}

	assign := func(userID, roleID int64) {
		Expect(repo.InsertUserRole(&rbacDatamodel.UserRole{
			UserID:     userID,
			RoleID:     roleID,
			AssignedAt: time.Now(),
		})).To(Succeed())
	}

	attach := func(roleID, permissionID int64) {
		Expect(repo.InsertRolePermission(&rbacDatamodel.RolePermission{
			RoleID:       roleID,
			PermissionID: permissionID,
		})).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		// Use SQLite in-memory database for testing; TranslateError keeps
		// constraint violations mapped the same way as in production.
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
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

		repo = rbacPostgres.NewRepository(db)
	})

	Describe("CreateUser", func() {
		It("should create a user and fill generated fields", func() {
			user := newUser("alice", "alice@example.com")
			Expect(user.ID).To(BeNumerically(">", 0))
			Expect(user.CreatedAt).NotTo(BeZero())
		})

		It("should map a duplicate username onto the duplicate sentinel", func() {
			newUser("alice", "alice@example.com")
			err := repo.CreateUser(&rbacDatamodel.User{
				Username:     "alice",
				Email:        "other@example.com",
				PasswordHash: "hash",
			})
			Expect(err).To(MatchError(rbac.ErrDuplicateEntry))
		})
	})

	Describe("GetUserByID", func() {
		It("should return nil without error when the user is missing", func() {
			user, err := repo.GetUserByID(12345)
			Expect(err).NotTo(HaveOccurred())
			Expect(user).To(BeNil())
		})
	})

	Describe("GetUserByUsernameOrEmail", func() {
		It("should match on either column", func() {
			newUser("alice", "alice@example.com")

			byName, err := repo.GetUserByUsernameOrEmail("alice", "nobody@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(byName).NotTo(BeNil())

			byEmail, err := repo.GetUserByUsernameOrEmail("nobody", "alice@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail).NotTo(BeNil())
		})
	})

	Describe("UpdateUser", func() {
		It("should apply only the given fields", func() {
			user := newUser("alice", "alice@example.com")
			err := repo.UpdateUser(user.ID, map[string]interface{}{"full_name": "Alice A."})
			Expect(err).NotTo(HaveOccurred())

			got, err := repo.GetUserByID(user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FullName).To(Equal("Alice A."))
			Expect(got.Username).To(Equal("alice"))
		})

		It("should map a username collision onto the duplicate sentinel", func() {
			newUser("alice", "alice@example.com")
			bob := newUser("bob", "bob@example.com")

			err := repo.UpdateUser(bob.ID, map[string]interface{}{"username": "alice"})
			Expect(err).To(MatchError(rbac.ErrDuplicateEntry))
		})
	})

	Describe("DeleteUser", func() {
		It("should remove the user together with its role memberships", func() {
			user := newUser("alice", "alice@example.com")
			role := newRole("Viewer")
			assign(user.ID, role.ID)

			Expect(repo.DeleteUser(user.ID)).To(Succeed())

			got, err := repo.GetUserByID(user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())

			exists, err := repo.UserRoleExists(user.ID, role.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})

	Describe("Permissions", func() {
		It("should enforce uniqueness on the action resource pair", func() {
			newPermission("read", "collateral_evaluation")

			err := repo.CreatePermission(&rbacDatamodel.Permission{
				Action:   "read",
				Resource: "collateral_evaluation",
			})
			Expect(err).To(MatchError(rbac.ErrDuplicateEntry))
		})

		It("should allow the same action on another resource", func() {
			newPermission("read", "collateral_evaluation")
			permission := newPermission("read", "user_management")
			Expect(permission.ID).To(BeNumerically(">", 0))
		})

		It("should look up by pair and filter by actions", func() {
			newPermission("read", "collateral_evaluation")
			newPermission("edit", "collateral_evaluation")
			newPermission("read", "user_management")

			got, err := repo.GetPermissionByPair("edit", "collateral_evaluation")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())

			reads, err := repo.GetPermissionsByActions([]string{"read"})
			Expect(err).NotTo(HaveOccurred())
			Expect(reads).To(HaveLen(2))
		})
	})

	Describe("DeleteRole", func() {
		It("should remove memberships and attachments with the role", func() {
			user := newUser("alice", "alice@example.com")
			role := newRole("Viewer")
			permission := newPermission("read", "collateral_evaluation")
			assign(user.ID, role.ID)
			attach(role.ID, permission.ID)

			Expect(repo.DeleteRole(role.ID)).To(Succeed())

			exists, err := repo.UserRoleExists(user.ID, role.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())

			attached, err := repo.RolePermissionExists(role.ID, permission.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(attached).To(BeFalse())
		})
	})

	Describe("DeletePermission", func() {
		It("should remove role attachments with the permission", func() {
			role := newRole("Viewer")
			permission := newPermission("read", "collateral_evaluation")
			attach(role.ID, permission.ID)

			Expect(repo.DeletePermission(permission.ID)).To(Succeed())

			attached, err := repo.RolePermissionExists(role.ID, permission.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(attached).To(BeFalse())
		})
	})

	Describe("InsertUserRole", func() {
		It("should reject a duplicate membership via the composite key", func() {
			user := newUser("alice", "alice@example.com")
			role := newRole("Viewer")
			assign(user.ID, role.ID)

			err := repo.InsertUserRole(&rbacDatamodel.UserRole{
				UserID:     user.ID,
				RoleID:     role.ID,
				AssignedAt: time.Now(),
			})
			Expect(err).To(MatchError(rbac.ErrDuplicateEntry))
		})
	})

	Describe("DeleteUserRole", func() {
		It("should report affected rows", func() {
			user := newUser("alice", "alice@example.com")
			role := newRole("Viewer")
			assign(user.ID, role.ID)

			affected, err := repo.DeleteUserRole(user.ID, role.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(Equal(int64(1)))

			affected, err = repo.DeleteUserRole(user.ID, role.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(BeZero())
		})
	})

	Describe("InsertRolePermission", func() {
		It("should reject a duplicate attachment via the composite key", func() {
			role := newRole("Viewer")
			permission := newPermission("read", "collateral_evaluation")
			attach(role.ID, permission.ID)

			err := repo.InsertRolePermission(&rbacDatamodel.RolePermission{
				RoleID:       role.ID,
				PermissionID: permission.ID,
			})
			Expect(err).To(MatchError(rbac.ErrDuplicateEntry))
		})
	})

	Describe("GetRolesForUser and GetPermissionsForRoles", func() {
		It("should walk the graph one level per query", func() {
			user := newUser("alice", "alice@example.com")
			viewer := newRole("Viewer")
			inputter := newRole("Inputter")
			read := newPermission("read", "collateral_evaluation")
			edit := newPermission("edit", "collateral_evaluation")
			assign(user.ID, viewer.ID)
			assign(user.ID, inputter.ID)
			attach(viewer.ID, read.ID)
			attach(inputter.ID, read.ID)
			attach(inputter.ID, edit.ID)

			roles, err := repo.GetRolesForUser(user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(roles).To(HaveLen(2))

			permsByRole, err := repo.GetPermissionsForRoles([]int64{viewer.ID, inputter.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(permsByRole[viewer.ID]).To(HaveLen(1))
			Expect(permsByRole[inputter.ID]).To(HaveLen(2))
		})

		It("should return an empty map for no role ids", func() {
			permsByRole, err := repo.GetPermissionsForRoles(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(permsByRole).To(BeEmpty())
		})
	})

	Describe("UserHasPermission", func() {
		It("should answer through the join across both association tables", func() {
			user := newUser("alice", "alice@example.com")
			role := newRole("Viewer")
			permission := newPermission("read", "collateral_evaluation")
			assign(user.ID, role.ID)
			attach(role.ID, permission.ID)

			has, err := repo.UserHasPermission(user.ID, "read", "collateral_evaluation")
			Expect(err).NotTo(HaveOccurred())
			Expect(has).To(BeTrue())

			has, err = repo.UserHasPermission(user.ID, "edit", "collateral_evaluation")
			Expect(err).NotTo(HaveOccurred())
			Expect(has).To(BeFalse())
		})
	})

	Describe("GetUserPermissionGrants", func() {
		It("should name the role granting each permission", func() {
			user := newUser("alice", "alice@example.com")
			viewer := newRole("Viewer")
			inputter := newRole("Inputter")
			read := newPermission("read", "collateral_evaluation")
			assign(user.ID, viewer.ID)
			assign(user.ID, inputter.ID)
			attach(viewer.ID, read.ID)
			attach(inputter.ID, read.ID)

			grants, err := repo.GetUserPermissionGrants(user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(ConsistOf(
				rbac.PermissionGrant{Action: "read", Resource: "collateral_evaluation", Role: "Viewer"},
				rbac.PermissionGrant{Action: "read", Resource: "collateral_evaluation", Role: "Inputter"},
			))
		})
	})

	Describe("Default data bootstrap", func() {
		var service *rbac.Service

		countRows := func(model interface{}) int64 {
			var count int64
			Expect(db.Model(model).Count(&count).Error).NotTo(HaveOccurred())
			return count
		}

		BeforeEach(func() {
			testLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
			service = rbac.NewService(repo, sqliteHasher{}, testLogger)
		})

		It("should seed the catalog once and stay stable on reruns", func() {
			Expect(service.InitializeDefaultData()).To(Succeed())

			Expect(countRows(&rbacDatamodel.Permission{})).To(Equal(int64(9)))
			Expect(countRows(&rbacDatamodel.Role{})).To(Equal(int64(4)))
			attachments := countRows(&rbacDatamodel.RolePermission{})

			Expect(service.InitializeDefaultData()).To(Succeed())
			Expect(countRows(&rbacDatamodel.Permission{})).To(Equal(int64(9)))
			Expect(countRows(&rbacDatamodel.Role{})).To(Equal(int64(4)))
			Expect(countRows(&rbacDatamodel.RolePermission{})).To(Equal(attachments))
		})

		It("should give the Admin role the whole catalog", func() {
			Expect(service.InitializeDefaultData()).To(Succeed())

			admin, err := repo.GetRoleByName(rbac.RoleAdmin)
			Expect(err).NotTo(HaveOccurred())
			Expect(admin).NotTo(BeNil())

			permsByRole, err := repo.GetPermissionsForRoles([]int64{admin.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(permsByRole[admin.ID]).To(HaveLen(9))
		})
	})
})
