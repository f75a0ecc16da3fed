package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecoguide/ecoguide/models"
	"github.com/ecoguide/ecoguide/routes"
	"github.com/ecoguide/ecoguide/utils"
)

func progresoPath(id uint) string {
	return fmt.Sprintf("/api/usuarios/%d/progreso", id)
}

func TestUpdateProgressAppliesDeltas(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "marta", 20, 1.0)
	residuo := seedResiduo(t, env.db, "botella PET", "plastico", 2, 0.5)

	w := doJSON(t, env, http.MethodPut, progresoPath(user.ID), bearer(t, user), map[string]interface{}{
		"puntos":      10,
		"co2_evitado": 0.5,
		"residuo_id":  residuo.ID,
		"fue_acierto": true,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	require.Equal(t, true, body["success"])

	updated := reloadUser(t, env.db, user.ID)
	require.Equal(t, 30, updated.Puntos)
	require.InDelta(t, 1.5, updated.CO2Evitado, 1e-9)

	var attempts []models.Attempt
	require.NoError(t, env.db.Where("usuario_id = ?", user.ID).Find(&attempts).Error)
	require.Len(t, attempts, 1)
	require.Equal(t, residuo.ID, attempts[0].ResiduoID)
	require.True(t, attempts[0].FueAcierto)
	require.Equal(t, 10, attempts[0].PuntosOtorgados)
	require.False(t, attempts[0].Fecha.IsZero())

	events := env.sink.Events()
	require.Len(t, events, 1)
	require.Equal(t, user.ID, events[0].UsuarioID)
	require.Equal(t, residuo.ID, events[0].ResiduoID)
	require.True(t, events[0].FueAcierto)
}

func TestUpdateProgressMissingFieldsRejected(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "nico", 5, 0.2)
	residuo := seedResiduo(t, env.db, "pila alcalina", "peligroso", 4, 1.2)
	auth := bearer(t, user)

	cases := []struct {
		name string
		body map[string]interface{}
		msg  string
	}{
		{
			name: "sin fue_acierto",
			body: map[string]interface{}{"puntos": 10, "co2_evitado": 0.5, "residuo_id": residuo.ID},
			msg:  "falta el campo fue_acierto",
		},
		{
			name: "sin residuo_id",
			body: map[string]interface{}{"puntos": 10, "co2_evitado": 0.5, "fue_acierto": true},
			msg:  "falta el campo residuo_id",
		},
		{
			name: "sin puntos",
			body: map[string]interface{}{"co2_evitado": 0.5, "residuo_id": residuo.ID, "fue_acierto": true},
			msg:  "falta el campo puntos",
		},
		{
			name: "sin co2_evitado",
			body: map[string]interface{}{"puntos": 10, "residuo_id": residuo.ID, "fue_acierto": true},
			msg:  "falta el campo co2_evitado",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, env, http.MethodPut, progresoPath(user.ID), auth, tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			require.Equal(t, tc.msg, decodeBody(t, w)["error"])
		})
	}

	// Nothing was written on any of the rejected requests.
	updated := reloadUser(t, env.db, user.ID)
	require.Equal(t, 5, updated.Puntos)
	require.InDelta(t, 0.2, updated.CO2Evitado, 1e-9)
	require.EqualValues(t, 0, countAttempts(t, env.db, user.ID))
	require.Empty(t, env.sink.Events())
}

func TestUpdateProgressRejectsNegativeDeltas(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "rosa", 50, 3.0)
	residuo := seedResiduo(t, env.db, "lata", "plastico", 1, 0.3)

	w := doJSON(t, env, http.MethodPut, progresoPath(user.ID), bearer(t, user), map[string]interface{}{
		"puntos":      -10,
		"co2_evitado": 0.5,
		"residuo_id":  residuo.ID,
		"fue_acierto": true,
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 50, reloadUser(t, env.db, user.ID).Puntos)
	require.EqualValues(t, 0, countAttempts(t, env.db, user.ID))
}

func TestUpdateProgressForbiddenForOtherUser(t *testing.T) {
	env := newEnv(t)
	owner := seedUser(t, env.db, "laura", 20, 1.0)
	intruder := seedUser(t, env.db, "dario", 0, 0)
	residuo := seedResiduo(t, env.db, "carton", "papel", 1, 0.4)

	w := doJSON(t, env, http.MethodPut, progresoPath(owner.ID), bearer(t, intruder), map[string]interface{}{
		"puntos":      10,
		"co2_evitado": 0.5,
		"residuo_id":  residuo.ID,
		"fue_acierto": true,
	})

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, 20, reloadUser(t, env.db, owner.ID).Puntos)
	require.EqualValues(t, 0, countAttempts(t, env.db, owner.ID))
	require.Empty(t, env.sink.Events())
}

func TestUpdateProgressUnknownResiduo(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "ines", 20, 1.0)

	w := doJSON(t, env, http.MethodPut, progresoPath(user.ID), bearer(t, user), map[string]interface{}{
		"puntos":      10,
		"co2_evitado": 0.5,
		"residuo_id":  999,
		"fue_acierto": true,
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "residuo_id no referencia un residuo existente", decodeBody(t, w)["error"])

	// The transaction rolled back: no attempt row, aggregate untouched.
	updated := reloadUser(t, env.db, user.ID)
	require.Equal(t, 20, updated.Puntos)
	require.InDelta(t, 1.0, updated.CO2Evitado, 1e-9)
	require.EqualValues(t, 0, countAttempts(t, env.db, user.ID))
	require.Empty(t, env.sink.Events())
}

func TestUpdateProgressInvalidUserIDParam(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "pau", 0, 0)

	w := doJSON(t, env, http.MethodPut, "/api/usuarios/abc/progreso", bearer(t, user), map[string]interface{}{
		"puntos":      10,
		"co2_evitado": 0.5,
		"residuo_id":  1,
		"fue_acierto": true,
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProgressRequiresToken(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "ana", 0, 0)

	w := doJSON(t, env, http.MethodPut, progresoPath(user.ID), "", map[string]interface{}{
		"puntos":      10,
		"co2_evitado": 0.5,
		"residuo_id":  1,
		"fue_acierto": true,
	})

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.EqualValues(t, 0, countAttempts(t, env.db, user.ID))
}

func TestSuccessiveSubmissionsAccumulate(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "teo", 20, 1.0)
	residuo := seedResiduo(t, env.db, "vidrio", "vidrio", 2, 0.8)
	auth := bearer(t, user)

	first := doJSON(t, env, http.MethodPut, progresoPath(user.ID), auth, map[string]interface{}{
		"puntos": 10, "co2_evitado": 0.5, "residuo_id": residuo.ID, "fue_acierto": true,
	})
	require.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, env, http.MethodPut, progresoPath(user.ID), auth, map[string]interface{}{
		"puntos": 5, "co2_evitado": 0.25, "residuo_id": residuo.ID, "fue_acierto": false,
	})
	require.Equal(t, http.StatusOK, second.Code)

	updated := reloadUser(t, env.db, user.ID)
	require.Equal(t, 35, updated.Puntos)
	require.InDelta(t, 1.75, updated.CO2Evitado, 1e-9)
	require.EqualValues(t, 2, countAttempts(t, env.db, user.ID))
	require.Len(t, env.sink.Events(), 2)
}

func TestConcurrentSubmissionsAccumulate(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "duo", 0, 0)
	residuo := seedResiduo(t, env.db, "lata de refresco", "plastico", 1, 0.3)
	auth := bearer(t, user)

	payload, err := json.Marshal(map[string]interface{}{
		"puntos":      10,
		"co2_evitado": 0.5,
		"residuo_id":  residuo.ID,
		"fue_acierto": true,
	})
	require.NoError(t, err)

	const workers = 8
	statuses := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPut, progresoPath(user.ID), bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", auth)
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			statuses <- w.Code
		}()
	}
	wg.Wait()
	close(statuses)

	// Not every request has to win the write lock, but each committed one
	// must land exactly once: no lost updates, no orphan attempt rows.
	committed := 0
	for code := range statuses {
		if code == http.StatusOK {
			committed++
		}
	}
	require.GreaterOrEqual(t, committed, 1)

	updated := reloadUser(t, env.db, user.ID)
	require.Equal(t, committed*10, updated.Puntos)
	require.InDelta(t, float64(committed)*0.5, updated.CO2Evitado, 1e-9)
	require.EqualValues(t, committed, countAttempts(t, env.db, user.ID))
	require.Len(t, env.sink.Events(), committed)
}

func TestMirrorEventCarriesFixedAward(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "eva", 0, 0)
	residuo := seedResiduo(t, env.db, "tetrabrik", "papel", 3, 0.6)
	auth := bearer(t, user)

	// Client applied 25 puntos, but the mirror signal stays 10 for aciertos.
	w := doJSON(t, env, http.MethodPut, progresoPath(user.ID), auth, map[string]interface{}{
		"puntos": 25, "co2_evitado": 1.0, "residuo_id": residuo.ID, "fue_acierto": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, env, http.MethodPut, progresoPath(user.ID), auth, map[string]interface{}{
		"puntos": 0, "co2_evitado": 0, "residuo_id": residuo.ID, "fue_acierto": false,
	})
	require.Equal(t, http.StatusOK, w.Code)

	events := env.sink.Events()
	require.Len(t, events, 2)
	require.Equal(t, 10, events[0].PuntosOtorgados)
	require.Equal(t, 0, events[1].PuntosOtorgados)
}

func TestMirrorFailureDoesNotAffectResponse(t *testing.T) {
	db := openTestDB(t)
	sink := utils.NewMongoSink(failingInserter{})
	defer sink.Close()
	env := &testEnv{router: routes.SetupRouter(db, sink), db: db}

	user := seedUser(t, db, "hugo", 20, 1.0)
	residuo := seedResiduo(t, db, "compost", "organico", 1, 0.2)

	w := doJSON(t, env, http.MethodPut, progresoPath(user.ID), bearer(t, user), map[string]interface{}{
		"puntos": 10, "co2_evitado": 0.5, "residuo_id": residuo.ID, "fue_acierto": true,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := reloadUser(t, db, user.ID)
	require.Equal(t, 30, updated.Puntos)
	require.InDelta(t, 1.5, updated.CO2Evitado, 1e-9)
	require.EqualValues(t, 1, countAttempts(t, db, user.ID))
}

func TestRegisterClassificationComputesReward(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "sara", 0, 0)
	// dificultad 3 weights co2_impacto 2.0 into 3.0
	residuo := seedResiduo(t, env.db, "aceite usado", "peligroso", 3, 2.0)

	w := doJSON(t, env, http.MethodPost, "/api/clasificacion/registrar", bearer(t, user), map[string]interface{}{
		"usuario_id":  user.ID,
		"residuo_id":  residuo.ID,
		"fue_acierto": true,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	require.Equal(t, true, body["success"])
	require.Equal(t, "clasificación registrada", body["mensaje"])

	datos, ok := body["datos"].(map[string]interface{})
	require.True(t, ok, "datos missing: %v", body)
	require.EqualValues(t, 10, datos["puntos"])
	require.InDelta(t, 3.0, datos["co2_evitado"].(float64), 1e-9)
	require.EqualValues(t, 1, datos["clasificaciones_hoy"])

	updated := reloadUser(t, env.db, user.ID)
	require.Equal(t, 10, updated.Puntos)
	require.InDelta(t, 3.0, updated.CO2Evitado, 1e-9)

	var attempt models.Attempt
	require.NoError(t, env.db.Where("usuario_id = ?", user.ID).First(&attempt).Error)
	require.Equal(t, 10, attempt.PuntosOtorgados)
	require.True(t, attempt.FueAcierto)
}

func TestRegisterClassificationIncorrectAwardsNothing(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "leo", 40, 2.0)
	residuo := seedResiduo(t, env.db, "bombilla", "vidrio", 2, 0.7)

	w := doJSON(t, env, http.MethodPost, "/api/clasificacion/registrar", bearer(t, user), map[string]interface{}{
		"usuario_id":  user.ID,
		"residuo_id":  residuo.ID,
		"fue_acierto": false,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	datos := decodeBody(t, w)["datos"].(map[string]interface{})
	require.EqualValues(t, 40, datos["puntos"])
	require.InDelta(t, 2.0, datos["co2_evitado"].(float64), 1e-9)

	// The failed attempt is still recorded in the historial.
	var attempt models.Attempt
	require.NoError(t, env.db.Where("usuario_id = ?", user.ID).First(&attempt).Error)
	require.False(t, attempt.FueAcierto)
	require.Equal(t, 0, attempt.PuntosOtorgados)

	events := env.sink.Events()
	require.Len(t, events, 1)
	require.Equal(t, 0, events[0].PuntosOtorgados)
}

func TestRegisterClassificationForbiddenForOtherUser(t *testing.T) {
	env := newEnv(t)
	owner := seedUser(t, env.db, "noa", 0, 0)
	intruder := seedUser(t, env.db, "gil", 0, 0)
	residuo := seedResiduo(t, env.db, "chatarra", "peligroso", 5, 3.0)

	w := doJSON(t, env, http.MethodPost, "/api/clasificacion/registrar", bearer(t, intruder), map[string]interface{}{
		"usuario_id":  owner.ID,
		"residuo_id":  residuo.ID,
		"fue_acierto": true,
	})

	require.Equal(t, http.StatusForbidden, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, false, body["success"])
	require.Equal(t, 0, reloadUser(t, env.db, owner.ID).Puntos)
}

func TestRegisterClassificationUnknownResiduo(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "uma", 0, 0)

	w := doJSON(t, env, http.MethodPost, "/api/clasificacion/registrar", bearer(t, user), map[string]interface{}{
		"usuario_id":  user.ID,
		"residuo_id":  424242,
		"fue_acierto": true,
	})

	// Same status as the PUT variant: a bad reference is a validation failure.
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "residuo_id no referencia un residuo existente", decodeBody(t, w)["error"])
	require.EqualValues(t, 0, countAttempts(t, env.db, user.ID))
}

func TestRegisterClassificationMissingFields(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "rita", 0, 0)
	auth := bearer(t, user)

	for _, body := range []map[string]interface{}{
		{"residuo_id": 1, "fue_acierto": true},
		{"usuario_id": user.ID, "fue_acierto": true},
		{"usuario_id": user.ID, "residuo_id": 1},
	} {
		w := doJSON(t, env, http.MethodPost, "/api/clasificacion/registrar", auth, body)
		require.Equal(t, http.StatusBadRequest, w.Code, "body %v", body)
		require.Equal(t, false, decodeBody(t, w)["success"])
	}
}

func TestProgressWritesAuditEntry(t *testing.T) {
	env := newEnv(t)
	user := seedUser(t, env.db, "omar", 0, 0)
	residuo := seedResiduo(t, env.db, "papel usado", "papel", 1, 0.1)

	w := doJSON(t, env, http.MethodPut, progresoPath(user.ID), bearer(t, user), map[string]interface{}{
		"puntos": 10, "co2_evitado": 0.5, "residuo_id": residuo.ID, "fue_acierto": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var entries []models.AuditEntry
	require.NoError(t, env.db.Find(&entries).Error)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	require.Equal(t, user.ID, last.UsuarioID)
	require.Equal(t, "PUT /api/usuarios/:id/progreso", last.Accion)
	require.Contains(t, last.Ruta, "/progreso")
	require.NotEmpty(t, last.RequestID)
}
