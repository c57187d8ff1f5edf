package user

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	usersvc "obraflow-backend/internal/application/user"
	"obraflow-backend/internal/middleware"
	"obraflow-backend/internal/models"
	"obraflow-backend/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupUserTest(t *testing.T) (*Handlers, *gorm.DB) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	svc := &usersvc.Service{DB: db, Rdb: rdb}
	handlers := &Handlers{
		Service: svc,
		Config:  middleware.SessionConfig{AllowCrossSiteDev: false, IsProduction: false},
	}
	return handlers, db
}

func withSession(userID, role string, next fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("session_data", map[string]interface{}{})
		middleware.SetSessionUser(c, middleware.SessionUser{
			UserID: userID, Fullname: "Test", Email: "test@test.com", Role: role,
		})
		return next(c)
	}
}

func seedUser(t *testing.T, db *gorm.DB, id uuid.UUID, name, email, role string) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		UserID: id, UserName: name, Email: email, PasswordHash: "x", Fullname: "Seed User", Role: role,
	}).Error)
}

func TestCreateUser_Success(t *testing.T) {
	h, db := setupUserTest(t)
	app := fiber.New()
	app.Post("/create-user", h.CreateUser)

	body, _ := json.Marshal(map[string]string{
		"user_name": "ana_r", "email": "ana@example.com", "password": "Pass1!word", "fullname": "ana rodriguez",
	})
	req := httptest.NewRequest("POST", "/create-user", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	data, _ := out["data"].(map[string]interface{})
	user, _ := data["user"].(map[string]interface{})
	require.NotNil(t, user)
	assert.Equal(t, "Ana Rodriguez", user["fullname"], "full name is title-cased")
	assert.Equal(t, "viewer", user["role"], "new users default to viewer")
	_, hasHash := user["password_hash"]
	assert.False(t, hasHash)

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateUser_MissingFields(t *testing.T) {
	h, _ := setupUserTest(t)
	app := fiber.New()
	app.Post("/create-user", h.CreateUser)

	body, _ := json.Marshal(map[string]string{"email": "a@b.com"})
	req := httptest.NewRequest("POST", "/create-user", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	h, db := setupUserTest(t)
	seedUser(t, db, uuid.New(), "taken", "ana@example.com", constants.Viewer)
	app := fiber.New()
	app.Post("/create-user", h.CreateUser)

	body, _ := json.Marshal(map[string]string{
		"user_name": "ana2", "email": "ana@example.com", "password": "Pass1!word", "fullname": "Ana Dos",
	})
	req := httptest.NewRequest("POST", "/create-user", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestViewUser_RequiresSession(t *testing.T) {
	h, _ := setupUserTest(t)
	app := fiber.New()
	app.Get("/view-user", h.ViewUser)

	resp, err := app.Test(httptest.NewRequest("GET", "/view-user", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestViewUser_ReturnsSessionUser(t *testing.T) {
	h, db := setupUserTest(t)
	uid := uuid.New()
	seedUser(t, db, uid, "viewer1", "v@test.com", constants.Viewer)

	app := fiber.New()
	app.Get("/view-user", withSession(uid.String(), constants.Viewer, h.ViewUser))

	resp, err := app.Test(httptest.NewRequest("GET", "/view-user", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	data, _ := out["data"].(map[string]interface{})
	user, _ := data["user"].(map[string]interface{})
	assert.Equal(t, "v@test.com", user["email"])
}

func TestUpdateUser_ChangesFullname(t *testing.T) {
	h, db := setupUserTest(t)
	uid := uuid.New()
	seedUser(t, db, uid, "viewer1", "v@test.com", constants.Viewer)

	app := fiber.New()
	app.Put("/update-user", withSession(uid.String(), constants.Viewer, h.UpdateUser))

	body, _ := json.Marshal(map[string]string{"fullname": "nuevo nombre"})
	req := httptest.NewRequest("PUT", "/update-user", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var u models.User
	require.NoError(t, db.Where("user_id = ?", uid).First(&u).Error)
	assert.Equal(t, "Nuevo Nombre", u.Fullname)
}

func TestUpdateRole_AdminPromotesViewer(t *testing.T) {
	h, db := setupUserTest(t)
	adminID := uuid.New()
	targetID := uuid.New()
	seedUser(t, db, adminID, "admin1", "a@test.com", constants.Admin)
	seedUser(t, db, targetID, "viewer1", "v@test.com", constants.Viewer)

	app := fiber.New()
	app.Patch("/update-role", withSession(adminID.String(), constants.Admin, h.UpdateRole))

	body, _ := json.Marshal(map[string]string{"user_id": targetID.String(), "role": constants.Manager})
	req := httptest.NewRequest("PATCH", "/update-role", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var u models.User
	require.NoError(t, db.Where("user_id = ?", targetID).First(&u).Error)
	assert.Equal(t, constants.Manager, u.Role)
}

func TestUpdateRole_CannotChangeOwnRole(t *testing.T) {
	h, db := setupUserTest(t)
	adminID := uuid.New()
	seedUser(t, db, adminID, "admin1", "a@test.com", constants.Admin)

	app := fiber.New()
	app.Patch("/update-role", withSession(adminID.String(), constants.Admin, h.UpdateRole))

	body, _ := json.Marshal(map[string]string{"user_id": adminID.String(), "role": constants.Viewer})
	req := httptest.NewRequest("PATCH", "/update-role", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUpdateRole_OnlySuperadminAssignsSuperadmin(t *testing.T) {
	h, db := setupUserTest(t)
	adminID := uuid.New()
	targetID := uuid.New()
	seedUser(t, db, adminID, "admin1", "a@test.com", constants.Admin)
	seedUser(t, db, targetID, "viewer1", "v@test.com", constants.Viewer)

	app := fiber.New()
	app.Patch("/update-role", withSession(adminID.String(), constants.Admin, h.UpdateRole))

	body, _ := json.Marshal(map[string]string{"user_id": targetID.String(), "role": constants.Superadmin})
	req := httptest.NewRequest("PATCH", "/update-role", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRemoveUser_SoftDeletes(t *testing.T) {
	h, db := setupUserTest(t)
	adminID := uuid.New()
	targetID := uuid.New()
	seedUser(t, db, adminID, "admin1", "a@test.com", constants.Admin)
	seedUser(t, db, targetID, "viewer1", "v@test.com", constants.Viewer)

	app := fiber.New()
	app.Delete("/remove-user", withSession(adminID.String(), constants.Admin, h.RemoveUser))

	body, _ := json.Marshal(map[string]string{"user_id": targetID.String()})
	req := httptest.NewRequest("DELETE", "/remove-user", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var u models.User
	err = db.Where("user_id = ?", targetID).First(&u).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "soft-deleted user hidden from default scope")
	require.NoError(t, db.Unscoped().Where("user_id = ?", targetID).First(&u).Error)
	assert.True(t, u.DeletedAt.Valid)
}

func TestRemoveUser_InvalidUUID(t *testing.T) {
	h, db := setupUserTest(t)
	adminID := uuid.New()
	seedUser(t, db, adminID, "admin1", "a@test.com", constants.Admin)

	app := fiber.New()
	app.Delete("/remove-user", withSession(adminID.String(), constants.Admin, h.RemoveUser))

	body, _ := json.Marshal(map[string]string{"user_id": "not-a-uuid"})
	req := httptest.NewRequest("DELETE", "/remove-user", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAuthorizePermission_ViewerCannotAssignRole(t *testing.T) {
	h, db := setupUserTest(t)
	viewerID := uuid.New()
	seedUser(t, db, viewerID, "viewer1", "v@test.com", constants.Viewer)

	app := fiber.New()
	app.Patch("/update-role",
		withSession(viewerID.String(), constants.Viewer, func(c *fiber.Ctx) error {
			return middleware.AuthorizePermission(constants.AssignRole)(c)
		}),
		h.UpdateRole)

	body, _ := json.Marshal(map[string]string{"user_id": uuid.New().String(), "role": constants.Manager})
	req := httptest.NewRequest("PATCH", "/update-role", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
