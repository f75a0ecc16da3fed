package models

import "time"

// AnalyticsEvent mirrors an Attempt into the secondary analytics store.
// It is written fire-and-forget after the primary transaction commits: an
// attempt may end up with zero events (dropped) or, in principle, more than
// one. PuntosOtorgados here is a coarse behavioral signal fixed at 10/0 by
// correctness, independent of the delta actually applied to the user.
type AnalyticsEvent struct {
	UsuarioID       uint      `bson:"usuario_id" json:"usuario_id"`
	ResiduoID       uint      `bson:"residuo_id" json:"residuo_id"`
	FueAcierto      bool      `bson:"fue_acierto" json:"fue_acierto"`
	PuntosOtorgados int       `bson:"puntos_otorgados" json:"puntos_otorgados"`
	Timestamp       time.Time `bson:"timestamp" json:"timestamp"`
}
