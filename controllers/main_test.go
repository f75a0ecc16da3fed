package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ecoguide/ecoguide/config"
	"github.com/ecoguide/ecoguide/models"
	"github.com/ecoguide/ecoguide/routes"
	"github.com/ecoguide/ecoguide/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("GIN_MODE", "test")
	os.Setenv("GIN_PATH", filepath.Join(os.TempDir(), "ecoguide_test_gin.log"))
	// Every httptest request shares one client IP; keep the per-IP throttles
	// out of the way so unrelated tests don't starve each other.
	os.Setenv("RATE_LIMIT_PER_MINUTE", "100000")
	os.Setenv("REGISTER_ATTEMPT_COOLDOWN_SEC", "0")
	os.Setenv("REGISTER_MAX_PER_IP_PER_DAY", "0")

	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

// captureSink collects mirrored events in memory so tests can assert on them.
type captureSink struct {
	mu     sync.Mutex
	events []models.AnalyticsEvent
}

func (s *captureSink) Submit(ev models.AnalyticsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *captureSink) Close() {}

func (s *captureSink) Events() []models.AnalyticsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AnalyticsEvent, len(s.events))
	copy(out, s.events)
	return out
}

// failingInserter simulates an unreachable analytics store.
type failingInserter struct{}

func (failingInserter) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	return nil, errors.New("analytics store unavailable")
}

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	sink   *captureSink
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.WasteItem{}, &models.Attempt{}, &models.AuditEntry{}))
	return db
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	sink := &captureSink{}
	return &testEnv{
		router: routes.SetupRouter(db, sink),
		db:     db,
		sink:   sink,
	}
}

func seedUser(t *testing.T, db *gorm.DB, nombre string, puntos int, co2 float64) models.User {
	t.Helper()
	hash, err := utils.HashPassword("secreto123")
	require.NoError(t, err)
	user := models.User{
		Nombre:       nombre,
		Email:        strings.ToLower(nombre) + "@example.com",
		PasswordHash: hash,
		Puntos:       puntos,
		CO2Evitado:   co2,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedResiduo(t *testing.T, db *gorm.DB, nombre, categoria string, dificultad int, co2Impacto float64) models.WasteItem {
	t.Helper()
	item := models.WasteItem{
		Nombre:     nombre,
		Categoria:  categoria,
		Dificultad: dificultad,
		CO2Impacto: co2Impacto,
		Consejo:    "deposítalo en el contenedor correcto",
	}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func bearer(t *testing.T, user models.User) string {
	t.Helper()
	token, err := utils.GenerateToken(user.ID, user.Email, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, env *testEnv, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, id).Error)
	return user
}

func countAttempts(t *testing.T, db *gorm.DB, usuarioID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Attempt{}).Where("usuario_id = ?", usuarioID).Count(&n).Error)
	return n
}
